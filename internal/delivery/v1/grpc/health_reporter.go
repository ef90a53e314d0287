package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/logger"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Имена сервисов в grpc.health.v1. Пустое имя — сервис целиком.
const (
	ServiceOverall       = ""
	ServiceCollaborative = "recommender.collaborative"
	ServiceContent       = "recommender.content"
)

type healthSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

type StatusSource interface {
	Status() domain.TrainingStatus
}

// HealthReporter периодически переносит состояние моделей в grpc.health.v1:
// семейство SERVING, пока у него есть обученный снимок.
type HealthReporter struct {
	health   healthSetter
	source   StatusSource
	interval time.Duration
	logger   logger.Logger

	last   map[string]healthpb.HealthCheckResponse_ServingStatus
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewHealthReporter(health healthSetter, source StatusSource, interval time.Duration, logger logger.Logger) *HealthReporter {
	return &HealthReporter{
		health:   health,
		source:   source,
		interval: interval,
		logger:   logger,
		last:     make(map[string]healthpb.HealthCheckResponse_ServingStatus),
		stopCh:   make(chan struct{}),
	}
}

func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(ctx)
	}()
}

func (h *HealthReporter) Stop() {
	close(h.stopCh)
	h.wg.Wait()
}

func (h *HealthReporter) run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.report()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.report()
		}
	}
}

func (h *HealthReporter) report() {
	st := h.source.Status()

	h.set(ServiceOverall, healthpb.HealthCheckResponse_SERVING)
	h.set(ServiceCollaborative, servingStatus(st.Collaborative.Trained))
	h.set(ServiceContent, servingStatus(st.Content.Trained))
}

func (h *HealthReporter) set(service string, status healthpb.HealthCheckResponse_ServingStatus) {
	if prev, ok := h.last[service]; ok && prev == status {
		return
	}
	h.last[service] = status
	h.health.SetServingStatus(service, status)
	h.logger.Infof("grpc health: service=%q status=%s", service, status)
}

func servingStatus(trained bool) healthpb.HealthCheckResponse_ServingStatus {
	if trained {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
