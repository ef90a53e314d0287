package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
)

const (
	notifyChannel = "outbox_pending"
	staleAfter    = 5 * time.Minute
)

type OutboxWorkerCfg struct {
	BatchSize    int
	PollInterval time.Duration
	DBConnStr    string // пусто — без LISTEN, только периодический опрос
}

// OutboxWorker публикует события outbox в Kafka. Очередь разбирается при старте,
// по уведомлению NOTIFY outbox_pending и по таймеру.
type OutboxWorker struct {
	repo     usecase.OutboxRepository
	logger   logger.Logger
	producer usecase.MessageProducer
	cfg      OutboxWorkerCfg
	stop     chan struct{}
	wake     chan struct{}
	wg       sync.WaitGroup
}

func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	cfg OutboxWorkerCfg,
) *OutboxWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}

	return &OutboxWorker{
		repo:     repo,
		logger:   logger,
		producer: producer,
		cfg:      cfg,
		stop:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	if w.cfg.DBConnStr != "" {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.listenOutboxNotifications(ctx)
		}()
	}
}

func (w *OutboxWorker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

func (w *OutboxWorker) run(ctx context.Context) {
	w.logger.Infof("Draining pending outbox events on startup...")
	w.drain(ctx)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infof("Outbox worker stopped by context cancellation")
			return
		case <-w.stop:
			return
		case <-ticker.C:
			if n, err := w.repo.RequeueStale(ctx, staleAfter); err != nil {
				w.logger.Warnf("requeue stale outbox events failed: %v", err)
			} else if n > 0 {
				w.logger.Infof("requeued %d stale outbox events", n)
			}
			w.drain(ctx)
		case <-w.wake:
			w.drain(ctx)
		}
	}
}

// drain обрабатывает пачки, пока очередь не опустеет.
func (w *OutboxWorker) drain(ctx context.Context) {
	for {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			w.logger.Warnf("Batch processing failed: %v", err)
			return
		}
		if !hasMore {
			return
		}
	}
}

func (w *OutboxWorker) listenOutboxNotifications(ctx context.Context) {
	var conn *pgx.Conn

	connect := func() error {
		var err error
		conn, err = pgx.Connect(ctx, w.cfg.DBConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		if _, err = conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
			conn.Close(ctx)
			return e.Wrap("failed to LISTEN", err)
		}

		w.logger.Infof("Subscribed to '%s' channel", notifyChannel)
		return nil
	}

	if err := connect(); err != nil {
		w.logger.Warnf("Initial connect failed, falling back to polling: %v", err)
		return
	}
	defer func() { conn.Close(context.Background()) }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		notif, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warnf("Connection lost: %v. Reconnecting...", err)
			conn.Close(ctx)

			if !w.sleep(ctx, 2*time.Second) {
				return
			}
			if err := connect(); err != nil {
				w.logger.Warnf("Reconnect failed: %v", err)
				if !w.sleep(ctx, 5*time.Second) {
					return
				}
			}
			continue
		}

		if notif != nil && notif.Channel == notifyChannel {
			w.logger.Debugf("Received outbox notification")
			select {
			case w.wake <- struct{}{}:
			default:
			}
		}
	}
}

func (w *OutboxWorker) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	case <-w.stop:
		return false
	}
}

// processBatch возвращает true, если пачка была полной и в очереди могут остаться события.
func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, w.cfg.BatchSize)
	if err != nil {
		return false, err
	}

	failed := 0
	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			if !isRetryableError(err) {
				w.logger.Errorf(err, "outbox event %s dropped", event.EventID)
				if err := w.repo.MarkAsFailed(ctx, event.ID); err != nil {
					w.logger.Warnf("mark failed failed: %v", err)
				}
				continue
			}
			failed++
			w.logger.Warnf("publish outbox event %s failed: %v", event.EventID, err)
			continue
		}
		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("mark processed failed: %v", err)
		}
	}

	// неотправленные события остаются в processing до RequeueStale
	if failed > 0 {
		return false, nil
	}

	return len(events) == w.cfg.BatchSize, nil
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *usecase.OutboxEvent) error {
	if err := w.producer.WriteEvent(ctx, event); err != nil {
		if isRetryableError(err) {
			return e.Wrap("Temporary Kafka failure, will retry", err)
		}
		return e.Wrap("Permanent Kafka failure", err)
	}
	return nil
}

// isRetryableError отделяет сбои доставки от ошибок самого события.
// Битый payload и отказы брокера без флага Temporary не повторяются,
// остальные события вернутся в очередь через RequeueStale.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, e.ErrMalformedEvent) {
		return false
	}

	var kafkaErr kafka.Error
	if errors.As(err, &kafkaErr) {
		return kafkaErr.Temporary()
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		for _, werr := range writeErrs {
			if werr != nil && isRetryableError(werr) {
				return true
			}
		}
		return writeErrs.Count() == 0
	}

	return true
}
