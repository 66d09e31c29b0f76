package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/observability"
)

type publisherStub struct {
	mu        sync.Mutex
	delivered []dto.NotificationCreateRequest
	release   chan struct{}
	fail      bool
}

func (p *publisherStub) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delivered = append(p.delivered, payload)
	if p.fail {
		return dto.NotificationResponse{}, errors.New("broker offline")
	}
	return dto.NotificationResponse{UserID: payload.UserID, Type: payload.Type}, nil
}

func (p *publisherStub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.delivered)
}

func TestNotificationDispatcherDelivers(t *testing.T) {
	publisher := &publisherStub{fail: true}
	dispatcher := NewNotificationDispatcher(publisher, 2, 8, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(ctx)
	dispatcher.Start(ctx)

	for i := 1; i <= 5; i++ {
		dispatcher.Notify(context.Background(), dto.NotificationCreateRequest{UserID: uint(i), Type: NotificationGradePosted, Message: "graded"})
	}

	require.Eventually(t, func() bool { return publisher.count() == 5 }, time.Second, 10*time.Millisecond)
	cancel()
	dispatcher.Wait()
}

func TestNotificationDispatcherDropsWhenFull(t *testing.T) {
	publisher := &publisherStub{release: make(chan struct{})}
	dispatcher := NewNotificationDispatcher(publisher, 1, 1, testLogger())
	dropped := testutil.ToFloat64(observability.NotificationsDroppedTotal())

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(ctx)

	// The worker blocks on the first event; the second fills the queue.
	dispatcher.Notify(ctx, dto.NotificationCreateRequest{UserID: 1, Type: NotificationGradePosted, Message: "one"})
	require.Eventually(t, func() bool { return len(dispatcher.queue) == 0 }, time.Second, 5*time.Millisecond)
	dispatcher.Notify(ctx, dto.NotificationCreateRequest{UserID: 2, Type: NotificationGradePosted, Message: "two"})
	dispatcher.Notify(ctx, dto.NotificationCreateRequest{UserID: 3, Type: NotificationGradePosted, Message: "three"})

	require.Equal(t, dropped+1, testutil.ToFloat64(observability.NotificationsDroppedTotal()))

	close(publisher.release)
	cancel()
	dispatcher.Wait()
	require.Equal(t, 2, publisher.count())
}
