package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/recommender/collaborative"
	"github.com/DRSN-tech/recommender/internal/recommender/content"
	"github.com/DRSN-tech/recommender/pkg/e"
)

type nopMetrics struct{}

func (nopMetrics) ObserveTraining(string, string, time.Duration)   {}
func (nopMetrics) SetTrainingActive(string, bool)                  {}
func (nopMetrics) SetSnapshotSize(string, int)                     {}
func (nopMetrics) ObserveQuery(string, string, time.Duration, int) {}
func (nopMetrics) CacheResult(bool)                                {}

type fakeCollab struct {
	fits     atomic.Int32
	block    chan struct{} // если не nil, Fit ждёт закрытия
	entered  chan struct{}
	fitErr   error
	panicMsg string
	skip     bool
	stale    atomic.Bool
	version  string
	recs     []domain.ScoredProduct
}

func (f *fakeCollab) Fit(ctx context.Context) (collaborative.FitReport, error) {
	f.fits.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.fitErr != nil {
		return collaborative.FitReport{}, f.fitErr
	}
	if f.skip {
		return collaborative.FitReport{Skipped: true}, nil
	}
	return collaborative.FitReport{BuildID: "c-1", NumProducts: 3, NumUsers: 2}, nil
}

func (f *fakeCollab) SimilarItems(int64, int) []domain.ScoredProduct { return nil }

func (f *fakeCollab) UserRecommendations(int64, int, bool) []domain.ScoredProduct {
	return f.recs
}

func (f *fakeCollab) NeedsRetraining(time.Duration) bool { return f.stale.Load() }

func (f *fakeCollab) Status(time.Duration) domain.CollaborativeStatus {
	return domain.CollaborativeStatus{Trained: f.version != "", NeedsRetraining: f.stale.Load()}
}

func (f *fakeCollab) Version() string { return f.version }

type fakeContent struct {
	fits     atomic.Int32
	fitErr   error
	skip     bool
	trained  bool
	builtAt  *time.Time
	version  string
	search   []domain.ScoredProduct
	searchEr error
	searches atomic.Int32

	mu      sync.Mutex
	saved   []string
	loadErr error
	loads   int
}

func (f *fakeContent) Fit(context.Context) (content.FitReport, error) {
	f.fits.Add(1)
	if f.fitErr != nil {
		return content.FitReport{}, f.fitErr
	}
	if f.skip {
		return content.FitReport{Skipped: true}, nil
	}
	return content.FitReport{BuildID: "t-1", NumProducts: 4}, nil
}

func (f *fakeContent) SimilarItems(context.Context, int64, int) ([]domain.ScoredProduct, error) {
	return nil, nil
}

func (f *fakeContent) Search(context.Context, string, int) ([]domain.ScoredProduct, error) {
	f.searches.Add(1)
	return f.search, f.searchEr
}

func (f *fakeContent) Status() domain.ContentStatus {
	return domain.ContentStatus{Trained: f.trained, BuiltAt: f.builtAt}
}

func (f *fakeContent) Version() string { return f.version }

func (f *fakeContent) Save(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, dir)
	return nil
}

func (f *fakeContent) Load(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.loadErr
}

type fakeArtifacts struct {
	uploaded   []string
	downloadID string
	downloadEr error
}

func (f *fakeArtifacts) Upload(_ context.Context, buildID, _ string) error {
	f.uploaded = append(f.uploaded, buildID)
	return nil
}

func (f *fakeArtifacts) DownloadLatest(context.Context, string) (string, error) {
	return f.downloadID, f.downloadEr
}

type memCache struct {
	mu    sync.Mutex
	items map[string][]domain.ScoredProduct
	gets  int
}

func newMemCache() *memCache {
	return &memCache{items: map[string][]domain.ScoredProduct{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]domain.ScoredProduct, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	items, ok := c.items[key]
	if !ok {
		return nil, e.ErrCacheMiss
	}
	return items, nil
}

func (c *memCache) Set(_ context.Context, key string, items []domain.ScoredProduct) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = items
	return nil
}

type stubRanker struct {
	items []domain.ScoredProduct
	err   error
	calls atomic.Int32
}

func (s *stubRanker) Similar(context.Context, int64, int, domain.Mode) ([]domain.ScoredProduct, error) {
	s.calls.Add(1)
	return s.items, s.err
}

type stubTrainer struct {
	due      []domain.ModelFamily
	requests [][]domain.ModelFamily
	mu       sync.Mutex
}

func (s *stubTrainer) TrainAsync(families ...domain.ModelFamily) (domain.TrainOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, families)
	return domain.TrainStarted, nil
}

func (s *stubTrainer) DueFamilies() []domain.ModelFamily { return s.due }

func (s *stubTrainer) Status() domain.TrainingStatus { return domain.TrainingStatus{IsTraining: true} }
