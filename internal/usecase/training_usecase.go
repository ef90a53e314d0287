package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/recommender/collaborative"
	"github.com/DRSN-tech/recommender/internal/recommender/content"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/DRSN-tech/recommender/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
)

// CollaborativeModel — коллаборативная модель в том виде, в котором её использует сервис.
type CollaborativeModel interface {
	Fit(ctx context.Context) (collaborative.FitReport, error)
	SimilarItems(productID int64, k int) []domain.ScoredProduct
	UserRecommendations(userID int64, k int, excludePurchased bool) []domain.ScoredProduct
	NeedsRetraining(maxAge time.Duration) bool
	Status(maxAge time.Duration) domain.CollaborativeStatus
	Version() string
}

// ContentModel — контентная модель в том виде, в котором её использует сервис.
type ContentModel interface {
	Fit(ctx context.Context) (content.FitReport, error)
	SimilarItems(ctx context.Context, productID int64, k int) ([]domain.ScoredProduct, error)
	Search(ctx context.Context, query string, k int) ([]domain.ScoredProduct, error)
	Status() domain.ContentStatus
	Version() string
	Save(dir string) error
	Load(dir string) error
}

// TrainingCfg — параметры обучения.
type TrainingCfg struct {
	MaxAge        time.Duration // возраст снимка, после которого нужно переобучение
	RetryInterval time.Duration // минимальный интервал между попытками обучить одно семейство
	ArtifactsDir  string        // каталог снимка контентной модели; пусто — не сохранять
	RecordTimeout time.Duration // время на запись истории после прохода
}

// TrainingUseCase сериализует проходы обучения по семействам моделей.
// Для каждого семейства одновременно идёт не больше одного прохода.
type TrainingUseCase struct {
	collab  CollaborativeModel
	content ContentModel
	metrics Metrics
	logger  logger.Logger
	cfg     TrainingCfg

	dbPool     transaction.Transactional
	runRepo    TrainingRunRepository
	outboxRepo OutboxRepository
	artifacts  ArtifactStore

	collabBusy  atomic.Bool
	contentBusy atomic.Bool

	// Время начала последнего прохода по семейству, unix nano.
	collabAttempt  atomic.Int64
	contentAttempt atomic.Int64

	baseCtx context.Context
	wg      sync.WaitGroup
}

// TrainingOption подключает необязательные зависимости.
type TrainingOption func(*TrainingUseCase)

// WithHistory включает запись проходов и событий outbox в одной транзакции.
func WithHistory(dbPool transaction.Transactional, runRepo TrainingRunRepository, outboxRepo OutboxRepository) TrainingOption {
	return func(t *TrainingUseCase) {
		t.dbPool = dbPool
		t.runRepo = runRepo
		t.outboxRepo = outboxRepo
	}
}

// WithArtifactStore включает выгрузку снимков контентной модели.
func WithArtifactStore(store ArtifactStore) TrainingOption {
	return func(t *TrainingUseCase) { t.artifacts = store }
}

// NewTrainingUC создаёт оркестратор. baseCtx ограничивает фоновые проходы временем жизни сервиса.
func NewTrainingUC(
	baseCtx context.Context,
	collab CollaborativeModel,
	content ContentModel,
	metrics Metrics,
	logger logger.Logger,
	cfg TrainingCfg,
	opts ...TrainingOption,
) *TrainingUseCase {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = collaborative.DefaultMaxAge
	}
	if cfg.RetryInterval <= 0 || cfg.RetryInterval > cfg.MaxAge {
		cfg.RetryInterval = min(time.Hour, cfg.MaxAge)
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 5 * time.Second
	}

	t := &TrainingUseCase{
		collab:  collab,
		content: content,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		baseCtx: baseCtx,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TrainAsync запускает проход в фоне и сразу возвращает ответ.
// Если хотя бы одно из семейств уже обучается, ничего не запускается.
func (t *TrainingUseCase) TrainAsync(families ...domain.ModelFamily) (domain.TrainOutcome, error) {
	const op = "TrainingUseCase.TrainAsync"

	families, err := normalizeFamilies(families)
	if err != nil {
		return "", e.Wrap(op, err)
	}

	if !t.acquire(families) {
		t.logger.Infof("%s: training already in progress, families=%v", op, families)
		return domain.TrainInProgress, nil
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.runPasses(t.baseCtx, families); err != nil {
			t.logger.Errorf(err, "%s: background training finished with errors", op)
		}
	}()

	return domain.TrainStarted, nil
}

// TrainSync выполняет проход в вызывающей горутине.
func (t *TrainingUseCase) TrainSync(ctx context.Context, families ...domain.ModelFamily) (domain.TrainOutcome, error) {
	const op = "TrainingUseCase.TrainSync"

	families, err := normalizeFamilies(families)
	if err != nil {
		return "", e.Wrap(op, err)
	}

	if !t.acquire(families) {
		return domain.TrainInProgress, nil
	}

	if err := t.runPasses(ctx, families); err != nil {
		return domain.TrainCompleted, e.Wrap(op, err)
	}
	return domain.TrainCompleted, nil
}

// Status — сводный отчёт о моделях.
func (t *TrainingUseCase) Status() domain.TrainingStatus {
	return domain.TrainingStatus{
		Collaborative: t.collab.Status(t.cfg.MaxAge),
		Content:       t.content.Status(),
		IsTraining:    t.collabBusy.Load() || t.contentBusy.Load(),
	}
}

// DueFamilies возвращает семейства, которые пора обучить: снимка нет или он старше MaxAge,
// и с начала последней попытки прошло не меньше RetryInterval.
// Проход, пропущенный из-за отсутствия данных, тоже считается попыткой.
func (t *TrainingUseCase) DueFamilies() []domain.ModelFamily {
	now := time.Now()

	var due []domain.ModelFamily
	if t.collab.NeedsRetraining(t.cfg.MaxAge) && t.retryAllowed(domain.FamilyCollaborative, now) {
		due = append(due, domain.FamilyCollaborative)
	}
	if t.contentStale(now) && t.retryAllowed(domain.FamilyContent, now) {
		due = append(due, domain.FamilyContent)
	}
	return due
}

func (t *TrainingUseCase) contentStale(now time.Time) bool {
	st := t.content.Status()
	if !st.Trained || st.BuiltAt == nil {
		return true
	}
	return now.Sub(*st.BuiltAt) > t.cfg.MaxAge
}

func (t *TrainingUseCase) retryAllowed(family domain.ModelFamily, now time.Time) bool {
	last := t.attempt(family).Load()
	return last == 0 || now.Sub(time.Unix(0, last)) >= t.cfg.RetryInterval
}

// Restore поднимает последний снимок контентной модели: с диска, а если там его нет — из хранилища артефактов.
// Неудача не считается ошибкой: модель остаётся необученной.
func (t *TrainingUseCase) Restore(ctx context.Context) {
	const op = "TrainingUseCase.Restore"

	if t.cfg.ArtifactsDir == "" {
		return
	}

	err := t.content.Load(t.cfg.ArtifactsDir)
	if err == nil {
		t.metrics.SetSnapshotSize(string(domain.FamilyContent), t.content.Status().NumProducts)
		return
	}
	t.logger.Warnf("%s: local content snapshot unavailable: %v", op, err)

	if t.artifacts == nil {
		return
	}

	buildID, err := t.artifacts.DownloadLatest(ctx, t.cfg.ArtifactsDir)
	if err != nil {
		t.logger.Warnf("%s: no content snapshot in artifact store: %v", op, err)
		return
	}

	if err := t.content.Load(t.cfg.ArtifactsDir); err != nil {
		t.logger.Warnf("%s: downloaded snapshot %s is not usable: %v", op, buildID, err)
		return
	}
	t.metrics.SetSnapshotSize(string(domain.FamilyContent), t.content.Status().NumProducts)
}

// Wait дожидается фоновых проходов или истечения ctx.
func (t *TrainingUseCase) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *TrainingUseCase) guard(family domain.ModelFamily) *atomic.Bool {
	if family == domain.FamilyContent {
		return &t.contentBusy
	}
	return &t.collabBusy
}

func (t *TrainingUseCase) attempt(family domain.ModelFamily) *atomic.Int64 {
	if family == domain.FamilyContent {
		return &t.contentAttempt
	}
	return &t.collabAttempt
}

func (t *TrainingUseCase) acquire(families []domain.ModelFamily) bool {
	for i, f := range families {
		if !t.guard(f).CompareAndSwap(false, true) {
			for _, held := range families[:i] {
				t.guard(held).Store(false)
			}
			return false
		}
	}
	return true
}

func (t *TrainingUseCase) runPasses(ctx context.Context, families []domain.ModelFamily) error {
	var errs []error
	for _, f := range families {
		if err := t.runPass(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runPass освобождает флаг семейства при любом исходе, включая панику.
func (t *TrainingUseCase) runPass(ctx context.Context, family domain.ModelFamily) (err error) {
	const op = "TrainingUseCase.runPass"

	defer t.guard(family).Store(false)

	run := domain.NewTrainingRun(family, time.Now())
	t.attempt(family).Store(run.StartedAt.UnixNano())
	t.metrics.SetTrainingActive(string(family), true)
	t.logger.Infof("%s: starting %s training", op, family)

	defer func() {
		if r := recover(); r != nil {
			err = e.Wrap(op, fmt.Errorf("panic during %s training: %v", family, r))
		}
		t.metrics.SetTrainingActive(string(family), false)
		t.finishRun(ctx, run, err)
	}()

	switch family {
	case domain.FamilyCollaborative:
		return t.fitCollaborative(ctx, run)
	case domain.FamilyContent:
		return t.fitContent(ctx, run)
	default:
		return e.Wrap(op, e.ErrInvalidModel)
	}
}

func (t *TrainingUseCase) fitCollaborative(ctx context.Context, run *domain.TrainingRun) error {
	report, err := t.collab.Fit(ctx)
	if err != nil {
		return err
	}

	if report.Skipped {
		run.Result = domain.RunSkipped
		return nil
	}

	run.BuildID = report.BuildID
	run.NumProducts = report.NumProducts
	run.NumUsers = report.NumUsers
	t.metrics.SetSnapshotSize(string(domain.FamilyCollaborative), report.NumProducts)
	return nil
}

func (t *TrainingUseCase) fitContent(ctx context.Context, run *domain.TrainingRun) error {
	const op = "TrainingUseCase.fitContent"

	report, err := t.content.Fit(ctx)
	if err != nil {
		return err
	}

	if report.Skipped {
		run.Result = domain.RunSkipped
		return nil
	}

	run.BuildID = report.BuildID
	run.NumProducts = report.NumProducts
	t.metrics.SetSnapshotSize(string(domain.FamilyContent), report.NumProducts)

	// Снимок уже опубликован; ошибки сохранения не отменяют проход.
	if t.cfg.ArtifactsDir == "" {
		return nil
	}
	if err := t.content.Save(t.cfg.ArtifactsDir); err != nil {
		t.logger.Warnf("%s: failed to save content snapshot: %v", op, err)
		return nil
	}
	if t.artifacts != nil {
		if err := t.artifacts.Upload(ctx, report.BuildID, t.cfg.ArtifactsDir); err != nil {
			t.logger.Warnf("%s: failed to upload content snapshot %s: %v", op, report.BuildID, err)
		}
	}
	return nil
}

func (t *TrainingUseCase) finishRun(ctx context.Context, run *domain.TrainingRun, err error) {
	const op = "TrainingUseCase.finishRun"

	run.FinishedAt = time.Now()
	switch {
	case err != nil:
		run.Result = domain.RunFailed
		run.Error = err.Error()
		t.logger.Errorf(err, "%s: %s training failed after %v, previous snapshot kept", op, run.Family, run.Duration())
	case run.Result == domain.RunSkipped:
		t.logger.Warnf("%s: %s training skipped, no data", op, run.Family)
	default:
		run.Result = domain.RunSucceeded
		t.logger.Infof("%s: %s training finished in %v, products=%d users=%d",
			op, run.Family, run.Duration(), run.NumProducts, run.NumUsers)
	}

	t.metrics.ObserveTraining(string(run.Family), string(run.Result), run.Duration())

	if t.dbPool == nil {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.RecordTimeout)
	defer cancel()
	if err := t.recordRun(recordCtx, run); err != nil {
		t.logger.Warnf("%s: failed to record training run %s: %v", op, run.ID, err)
	}
}

// recordRun пишет запись истории и, для успешного прохода, событие outbox в одной транзакции.
func (t *TrainingUseCase) recordRun(ctx context.Context, run *domain.TrainingRun) (err error) {
	const op = "TrainingUseCase.recordRun"

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, t.dbPool)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			_ = tx.Rollback(ctx)
		}
	}()
	pgxTx, ok := tx.Transaction().(pgx.Tx)
	if !ok {
		err = e.ErrTransactionNotFound
		return e.Wrap(op, err)
	}
	ctx = tr.WithTx(ctx, pgxTx)

	if err = t.runRepo.Create(ctx, run); err != nil {
		return e.Wrap(op, err)
	}

	if run.Result == domain.RunSucceeded {
		if _, err = t.outboxRepo.Create(ctx, domain.NewModelTrainedEvent(run)); err != nil {
			return e.Wrap(op, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

// normalizeFamilies убирает повторы и выставляет порядок прохода. Пустой список — все семейства.
func normalizeFamilies(families []domain.ModelFamily) ([]domain.ModelFamily, error) {
	if len(families) == 0 {
		return slices.Clone(domain.AllFamilies), nil
	}

	out := make([]domain.ModelFamily, 0, len(domain.AllFamilies))
	for _, f := range domain.AllFamilies {
		if slices.Contains(families, f) {
			out = append(out, f)
		}
	}

	for _, f := range families {
		if !slices.Contains(domain.AllFamilies, f) {
			return nil, fmt.Errorf("%w: %q", e.ErrInvalidModel, f)
		}
	}
	return out, nil
}
