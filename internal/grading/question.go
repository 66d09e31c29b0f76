package grading

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionKind discriminates the question variants stored on quiz items.
type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "multiple_choice"
	QuestionTrueFalse      QuestionKind = "true_false"
	QuestionShortAnswer    QuestionKind = "short_answer"
	QuestionEssay          QuestionKind = "essay"
)

// Question is implemented only by the variant structs in this file.
type Question interface {
	QuestionID() string
	Kind() QuestionKind
	Weight() float64
	isQuestion()
}

// QuestionOption is a selectable answer of a multiple choice question.
type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// MultipleChoiceQuestion is answered with the id of one option.
type MultipleChoiceQuestion struct {
	ID              string           `json:"id"`
	Prompt          string           `json:"prompt"`
	Options         []QuestionOption `json:"options"`
	CorrectOptionID string           `json:"correct_option_id"`
	Points          float64          `json:"points,omitempty"`
}

// TrueFalseQuestion is answered with a boolean.
type TrueFalseQuestion struct {
	ID     string  `json:"id"`
	Prompt string  `json:"prompt"`
	Answer bool    `json:"answer"`
	Points float64 `json:"points,omitempty"`
}

// ShortAnswerQuestion matches a free-text answer case-insensitively.
type ShortAnswerQuestion struct {
	ID              string   `json:"id"`
	Prompt          string   `json:"prompt"`
	AcceptedAnswers []string `json:"accepted_answers"`
	Points          float64  `json:"points,omitempty"`
}

// EssayQuestion always requires an instructor.
type EssayQuestion struct {
	ID     string  `json:"id"`
	Prompt string  `json:"prompt"`
	Points float64 `json:"points,omitempty"`
}

func (q MultipleChoiceQuestion) QuestionID() string { return q.ID }
func (q MultipleChoiceQuestion) Kind() QuestionKind { return QuestionMultipleChoice }
func (q MultipleChoiceQuestion) Weight() float64    { return weight(q.Points) }
func (MultipleChoiceQuestion) isQuestion()          {}

func (q TrueFalseQuestion) QuestionID() string { return q.ID }
func (q TrueFalseQuestion) Kind() QuestionKind { return QuestionTrueFalse }
func (q TrueFalseQuestion) Weight() float64    { return weight(q.Points) }
func (TrueFalseQuestion) isQuestion()          {}

func (q ShortAnswerQuestion) QuestionID() string { return q.ID }
func (q ShortAnswerQuestion) Kind() QuestionKind { return QuestionShortAnswer }
func (q ShortAnswerQuestion) Weight() float64    { return weight(q.Points) }
func (ShortAnswerQuestion) isQuestion()          {}

func (q EssayQuestion) QuestionID() string { return q.ID }
func (q EssayQuestion) Kind() QuestionKind { return QuestionEssay }
func (q EssayQuestion) Weight() float64    { return weight(q.Points) }
func (EssayQuestion) isQuestion()          {}

func (q MultipleChoiceQuestion) MarshalJSON() ([]byte, error) {
	type plain MultipleChoiceQuestion
	return json.Marshal(struct {
		Type QuestionKind `json:"type"`
		plain
	}{QuestionMultipleChoice, plain(q)})
}

func (q TrueFalseQuestion) MarshalJSON() ([]byte, error) {
	type plain TrueFalseQuestion
	return json.Marshal(struct {
		Type QuestionKind `json:"type"`
		plain
	}{QuestionTrueFalse, plain(q)})
}

func (q ShortAnswerQuestion) MarshalJSON() ([]byte, error) {
	type plain ShortAnswerQuestion
	return json.Marshal(struct {
		Type QuestionKind `json:"type"`
		plain
	}{QuestionShortAnswer, plain(q)})
}

func (q EssayQuestion) MarshalJSON() ([]byte, error) {
	type plain EssayQuestion
	return json.Marshal(struct {
		Type QuestionKind `json:"type"`
		plain
	}{QuestionEssay, plain(q)})
}

func weight(points float64) float64 {
	if points <= 0 {
		return 1
	}
	return points
}

// DecodeQuestions parses a JSON array of type-tagged questions.
func DecodeQuestions(raw []byte) ([]Question, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	questions := make([]Question, 0, len(items))
	for i, item := range items {
		question, err := decodeQuestion(item)
		if err != nil {
			return nil, fmt.Errorf("decode question %d: %w", i, err)
		}
		questions = append(questions, question)
	}
	return questions, nil
}

func decodeQuestion(raw json.RawMessage) (Question, error) {
	var tag struct {
		Type QuestionKind `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}

	switch tag.Type {
	case QuestionMultipleChoice:
		var q MultipleChoiceQuestion
		err := json.Unmarshal(raw, &q)
		return q, err
	case QuestionTrueFalse:
		var q TrueFalseQuestion
		err := json.Unmarshal(raw, &q)
		return q, err
	case QuestionShortAnswer:
		var q ShortAnswerQuestion
		err := json.Unmarshal(raw, &q)
		return q, err
	case QuestionEssay:
		var q EssayQuestion
		err := json.Unmarshal(raw, &q)
		return q, err
	default:
		return nil, fmt.Errorf("unknown question type %q", tag.Type)
	}
}

// AutoScoreResult reports the objective score of a quiz attempt.
type AutoScoreResult struct {
	Earned     float64
	Possible   float64
	Percentage int
}

// AutoScore grades answers against objective questions. It reports false when the
// attempt needs an instructor: an essay question is present or there is nothing to score.
func AutoScore(questions []Question, answers map[string]json.RawMessage) (AutoScoreResult, bool) {
	if len(questions) == 0 {
		return AutoScoreResult{}, false
	}

	var result AutoScoreResult
	for _, question := range questions {
		if question.Kind() == QuestionEssay {
			return AutoScoreResult{}, false
		}
		result.Possible += question.Weight()

		answer, ok := answers[question.QuestionID()]
		if !ok {
			continue
		}
		if answerCorrect(question, answer) {
			result.Earned += question.Weight()
		}
	}

	result.Percentage = Percentage(result.Earned, result.Possible)
	return result, true
}

func answerCorrect(question Question, raw json.RawMessage) bool {
	switch q := question.(type) {
	case MultipleChoiceQuestion:
		var choice string
		if err := json.Unmarshal(raw, &choice); err != nil {
			return false
		}
		return choice != "" && choice == q.CorrectOptionID
	case TrueFalseQuestion:
		var value bool
		if err := json.Unmarshal(raw, &value); err != nil {
			return false
		}
		return value == q.Answer
	case ShortAnswerQuestion:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return false
		}
		normalized := normalizeAnswer(text)
		if normalized == "" {
			return false
		}
		for _, accepted := range q.AcceptedAnswers {
			if normalizeAnswer(accepted) == normalized {
				return true
			}
		}
		return false
	case EssayQuestion:
		return false
	default:
		panic(fmt.Sprintf("grading: unhandled question type %T", question))
	}
}

func normalizeAnswer(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}
