package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

// Trainer — часть оркестратора обучения, нужная воркеру.
type Trainer interface {
	TrainAsync(families ...domain.ModelFamily) (domain.TrainOutcome, error)
	DueFamilies() []domain.ModelFamily
	Status() domain.TrainingStatus
}

// RetrainWorker периодически запускает фоновое обучение семейств, чьи снимки устарели или отсутствуют.
type RetrainWorker struct {
	trainer  Trainer
	interval time.Duration
	logger   logger.Logger
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewRetrainWorker(trainer Trainer, interval time.Duration, logger logger.Logger) *RetrainWorker {
	return &RetrainWorker{
		trainer:  trainer,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

func (w *RetrainWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				w.check()
			}
		}
	}()
}

func (w *RetrainWorker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

func (w *RetrainWorker) check() {
	status := w.trainer.Status()
	if status.IsTraining {
		return
	}

	families := w.trainer.DueFamilies()
	if len(families) == 0 {
		return
	}

	outcome, err := w.trainer.TrainAsync(families...)
	if err != nil {
		w.logger.Errorf(err, "scheduled retrain failed to start")
		return
	}
	w.logger.Infof("scheduled retrain of %v: %s", families, outcome)
}
