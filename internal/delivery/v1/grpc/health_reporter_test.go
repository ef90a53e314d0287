package grpc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakeSource struct {
	mu sync.Mutex
	st domain.TrainingStatus
}

func (f *fakeSource) Status() domain.TrainingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fakeSource) set(st domain.TrainingStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st = st
}

func check(t *testing.T, hs *health.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()

	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthReporter_FollowsTrainingStatus(t *testing.T) {
	hs := health.NewServer()
	src := &fakeSource{}

	r := NewHealthReporter(hs, src, 10*time.Millisecond, logger.NewNop())
	r.report()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, hs, ServiceOverall))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, hs, ServiceCollaborative))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, hs, ServiceContent))

	src.set(domain.TrainingStatus{Collaborative: domain.CollaborativeStatus{Trained: true}})
	r.Start(context.Background())
	defer r.Stop()

	assert.Eventually(t, func() bool {
		return check(t, hs, ServiceCollaborative) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, hs, ServiceContent))
}

type countingSetter struct {
	calls int
}

func (c *countingSetter) SetServingStatus(string, healthpb.HealthCheckResponse_ServingStatus) {
	c.calls++
}

func TestHealthReporter_SetsOnlyChanges(t *testing.T) {
	setter := &countingSetter{}
	r := NewHealthReporter(setter, &fakeSource{}, time.Minute, logger.NewNop())

	r.report()
	r.report()

	assert.Equal(t, 3, setter.calls)
}
