package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SubmissionKind discriminates what a student turned in.
type SubmissionKind string

const (
	SubmissionQuiz       SubmissionKind = "quiz"
	SubmissionAssignment SubmissionKind = "assignment"
)

// ItemType is the type of a course content item.
type ItemType string

const (
	ItemLesson      ItemType = "lesson"
	ItemQuiz        ItemType = "quiz"
	ItemAssignment  ItemType = "assignment"
	ItemExamination ItemType = "examination"
)

// IsGradable reports whether items of this type produce a grade.
func (t ItemType) IsGradable() bool {
	switch t {
	case ItemQuiz, ItemAssignment, ItemExamination:
		return true
	default:
		return false
	}
}

// SubmissionKind returns the payload kind accepted by items of this type.
func (t ItemType) SubmissionKind() (SubmissionKind, bool) {
	switch t {
	case ItemQuiz, ItemExamination:
		return SubmissionQuiz, true
	case ItemAssignment:
		return SubmissionAssignment, true
	default:
		return "", false
	}
}

// SubmissionPayload is implemented by QuizAnswers and AssignmentWork.
type SubmissionPayload interface {
	Kind() SubmissionKind
	Validate() error
	isSubmissionPayload()
}

// QuizAnswers maps question ids to raw answer values.
type QuizAnswers struct {
	Answers map[string]json.RawMessage `json:"answers"`
}

// FileReference points at an uploaded file held by the storage collaborator.
type FileReference struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// AssignmentWork carries either a file reference or inline text.
type AssignmentWork struct {
	File        *FileReference `json:"file,omitempty"`
	TextContent string         `json:"text_content,omitempty"`
}

func (QuizAnswers) Kind() SubmissionKind    { return SubmissionQuiz }
func (AssignmentWork) Kind() SubmissionKind { return SubmissionAssignment }
func (QuizAnswers) isSubmissionPayload()    {}
func (AssignmentWork) isSubmissionPayload() {}

// Validate accepts any answer set, including an empty one.
func (q QuizAnswers) Validate() error {
	for id := range q.Answers {
		if strings.TrimSpace(id) == "" {
			return errors.New("answer question id is required")
		}
	}
	return nil
}

// Validate requires a file reference or non-empty text.
func (a AssignmentWork) Validate() error {
	if a.File == nil && strings.TrimSpace(a.TextContent) == "" {
		return errors.New("assignment submission requires a file or text content")
	}
	if a.File != nil {
		if strings.TrimSpace(a.File.Name) == "" || strings.TrimSpace(a.File.URL) == "" {
			return errors.New("file reference requires a name and url")
		}
		if a.File.Size < 0 {
			return errors.New("file size must not be negative")
		}
	}
	return nil
}

// DecodeSubmissionPayload parses a stored payload of the given kind.
func DecodeSubmissionPayload(kind SubmissionKind, raw []byte) (SubmissionPayload, error) {
	switch kind {
	case SubmissionQuiz:
		var payload QuizAnswers
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, fmt.Errorf("decode quiz submission: %w", err)
			}
		}
		return payload, nil
	case SubmissionAssignment:
		var payload AssignmentWork
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return nil, fmt.Errorf("decode assignment submission: %w", err)
			}
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unknown submission type %q", kind)
	}
}
