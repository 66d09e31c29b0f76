package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/observability"
)

const (
	defaultDispatchWorkers   = 2
	defaultDispatchQueueSize = 256
)

// Notifier accepts grading events for best-effort delivery. Notify never blocks.
type Notifier interface {
	Notify(ctx context.Context, notification dto.NotificationCreateRequest)
}

// NotificationPublisher is the delivery side of the notification service.
type NotificationPublisher interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// NotificationDispatcher queues notifications and publishes them from a worker pool,
// keeping delivery off the request path.
type NotificationDispatcher struct {
	publisher NotificationPublisher
	queue     chan dto.NotificationCreateRequest
	workers   int
	logger    zerolog.Logger
	wg        sync.WaitGroup
	startOnce sync.Once
}

// NewNotificationDispatcher builds a dispatcher with a bounded queue.
func NewNotificationDispatcher(publisher NotificationPublisher, workers, queueSize int, logger zerolog.Logger) *NotificationDispatcher {
	if workers <= 0 {
		workers = defaultDispatchWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultDispatchQueueSize
	}
	return &NotificationDispatcher{
		publisher: publisher,
		queue:     make(chan dto.NotificationCreateRequest, queueSize),
		workers:   workers,
		logger:    logger.With().Str("component", "notification_dispatcher").Logger(),
	}
}

// Start launches the workers. They exit once ctx is cancelled and the queue is drained.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.run(ctx)
		}
	})
}

// Wait blocks until every worker has exited.
func (d *NotificationDispatcher) Wait() {
	d.wg.Wait()
}

// Notify enqueues a notification, dropping it when the queue is full.
func (d *NotificationDispatcher) Notify(ctx context.Context, notification dto.NotificationCreateRequest) {
	select {
	case d.queue <- notification:
	default:
		observability.NotificationsDroppedTotal().Inc()
		d.logger.Warn().
			Uint("user_id", notification.UserID).
			Str("type", notification.Type).
			Msg("notification queue full, dropping event")
	}
}

func (d *NotificationDispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case notification := <-d.queue:
			d.deliver(notification)
		case <-ctx.Done():
			for {
				select {
				case notification := <-d.queue:
					d.deliver(notification)
				default:
					return
				}
			}
		}
	}
}

func (d *NotificationDispatcher) deliver(notification dto.NotificationCreateRequest) {
	// Delivery outlives the request that produced the event.
	if _, err := d.publisher.Publish(context.Background(), notification); err != nil {
		d.logger.Warn().Err(err).
			Uint("user_id", notification.UserID).
			Str("type", notification.Type).
			Msg("failed to deliver notification")
	}
}
