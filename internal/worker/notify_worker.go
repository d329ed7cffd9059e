package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookbite/internal/config"
	"bookbite/internal/events"
	"bookbite/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NotifyWorker turns reservation events into diner notifications. Jobs go
// through a redis list when redis is available and an in-process channel
// otherwise. Failed deliveries are retried with backoff, then dead-lettered.
type NotifyWorker struct {
	notifier      Notifier
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan Notification
	queueKey      string
	deadLetterKey string
	pollTimeout   time.Duration
	after         func(time.Duration, func())
	now           func() time.Time
	logger        *zerolog.Logger
}

// NewNotifyWorker builds a worker; redisClient may be nil.
func NewNotifyWorker(notifier Notifier, redisClient *redis.Client, cfg config.NotifyConfig, logger *zerolog.Logger) *NotifyWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	queueKey := cfg.QueueKey
	if queueKey == "" {
		queueKey = "bookbite:notify:queue"
	}
	deadLetterKey := cfg.DeadLetterKey
	if deadLetterKey == "" {
		deadLetterKey = "bookbite:notify:deadletter"
	}

	return &NotifyWorker{
		notifier:      notifier,
		redis:         redisClient,
		retryPolicy:   PolicyFromConfig(cfg),
		queue:         make(chan Notification, 128),
		queueKey:      queueKey,
		deadLetterKey: deadLetterKey,
		pollTimeout:   time.Second,
		after:         func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		now:           time.Now,
		logger:        logger,
	}
}

// Handle is an events.EventHandler. Events without a message or a contact are skipped.
func (w *NotifyWorker) Handle(event *events.Event) error {
	var payload events.ReservationEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	n, ok := Compose(event.Type, payload)
	if !ok {
		return nil
	}
	n.CreatedAt = w.now()
	return w.Enqueue(context.Background(), n)
}

// Enqueue schedules a notification via redis, falling back to memory.
func (w *NotifyWorker) Enqueue(ctx context.Context, n Notification) error {
	if n.Email == "" && n.Phone == "" {
		return errors.New("notification has no recipient")
	}

	if w.redis != nil {
		err := w.pushRedis(ctx, w.queueKey, n)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Msg("redis push failed, using memory queue")
	}

	select {
	case w.queue <- n:
		return nil
	default:
		metrics.IncNotification("dropped")
		return fmt.Errorf("notification queue full, reservation %d dropped", n.ReservationID)
	}
}

// Start consumes the queues until ctx is done.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notify worker started")
	defer w.logger.Info().Msg("notify worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-w.queue:
			w.process(ctx, n)
			continue
		default:
		}

		if w.redis == nil {
			select {
			case <-ctx.Done():
				return
			case n := <-w.queue:
				w.process(ctx, n)
			}
			continue
		}

		if n, ok := w.popRedis(ctx); ok {
			w.process(ctx, n)
		}
	}
}

func (w *NotifyWorker) popRedis(ctx context.Context) (Notification, bool) {
	res, err := w.redis.BRPop(ctx, w.pollTimeout, w.queueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("redis BRPOP")
			time.Sleep(w.pollTimeout)
		}
		return Notification{}, false
	}
	if len(res) != 2 {
		return Notification{}, false
	}

	var n Notification
	if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
		w.logger.Error().Err(err).Msg("decode queued notification")
		return Notification{}, false
	}
	return n, true
}

func (w *NotifyWorker) process(ctx context.Context, n Notification) {
	if err := w.notifier.Send(ctx, n); err != nil {
		w.retryOrDrop(ctx, n, err)
		return
	}
	metrics.IncNotification("sent")
}

func (w *NotifyWorker) retryOrDrop(ctx context.Context, n Notification, cause error) {
	n.Attempts++
	if w.retryPolicy.Exhausted(n.Attempts) {
		w.logger.Error().Err(cause).
			Int64("reservation_id", n.ReservationID).
			Int("attempts", n.Attempts).
			Msg("notification failed, moving to dead letter")
		metrics.IncNotification("dead")
		w.pushDeadLetter(ctx, n)
		return
	}

	delay := w.retryPolicy.NextDelay(n.Attempts)
	w.logger.Warn().Err(cause).
		Int64("reservation_id", n.ReservationID).
		Int("attempt", n.Attempts).
		Dur("retry_in", delay).
		Msg("notification failed, retrying")
	metrics.IncNotification("retried")

	w.after(delay, func() {
		if err := w.Enqueue(context.Background(), n); err != nil {
			w.logger.Error().Err(err).Msg("requeue notification")
		}
	})
}

func (w *NotifyWorker) pushRedis(ctx context.Context, key string, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *NotifyWorker) pushDeadLetter(ctx context.Context, n Notification) {
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, n); err != nil {
		w.logger.Error().Err(err).Int64("reservation_id", n.ReservationID).Msg("dead letter push")
	}
}
