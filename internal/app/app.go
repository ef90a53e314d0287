package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/recommender/internal/cfg"
	v1Grpc "github.com/DRSN-tech/recommender/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/recommender/internal/delivery/v1/http"
	"github.com/DRSN-tech/recommender/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/recommender/internal/infrastructure/minio"
	ml_service "github.com/DRSN-tech/recommender/internal/infrastructure/ml-service"
	"github.com/DRSN-tech/recommender/internal/infrastructure/scheduler"
	"github.com/DRSN-tech/recommender/internal/metrics"
	"github.com/DRSN-tech/recommender/internal/recommender/collaborative"
	"github.com/DRSN-tech/recommender/internal/recommender/content"
	"github.com/DRSN-tech/recommender/internal/recommender/hybrid"
	s3Repo "github.com/DRSN-tech/recommender/internal/repository/minio"
	"github.com/DRSN-tech/recommender/internal/repository/pgdb"
	qdrantRepo "github.com/DRSN-tech/recommender/internal/repository/qdrant"
	"github.com/DRSN-tech/recommender/internal/repository/redis"
	"github.com/DRSN-tech/recommender/internal/repository/sqlite"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/clients"
	"github.com/DRSN-tech/recommender/pkg/closer"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/DRSN-tech/recommender/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	shutdownTimeout   = 15 * time.Second
	dependencyTimeout = 10 * time.Second
	healthInterval    = 10 * time.Second
)

// worker — фоновый процесс со Start/Stop.
type worker interface {
	Start(ctx context.Context)
	Stop()
}

// App собирает зависимости сервиса и управляет его жизненным циклом.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	ctx    context.Context
	cancel context.CancelFunc

	trainUC *usecase.TrainingUseCase
	httpSrv *v1Http.Server
	grpcSrv *v1Grpc.GRPCServer
	workers []worker
}

// sources — источники данных для моделей и необязательная история обучения.
type sources struct {
	interactions collaborative.InteractionSource
	catalog      content.ProductSource
	db           *postgres.PgDatabase // nil в режиме sqlite
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:    cfg,
		logger: log,
		closer: closer.NewCloser(0),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := a.init(); err != nil {
		cancel()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		if cerr := a.closer.Close(closeCtx); cerr != nil {
			log.Warnf("cleanup after failed init: %v", cerr)
		}
		return nil, err
	}

	return a, nil
}

func (a *App) init() error {
	src, err := a.initSources()
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	collector := metrics.NewCollector()

	encoder, err := a.initEncoder()
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	contentOpts := []content.Option{content.WithBatchSize(a.cfg.Encoder.BatchSize)}
	if a.cfg.Qdrant.Enabled {
		builder, err := a.initQdrant()
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		contentOpts = append(contentOpts, content.WithIndexBuilder(builder))
	}

	collabModel := collaborative.NewModel(src.interactions, a.logger)
	contentModel := content.NewModel(src.catalog, encoder, a.logger, contentOpts...)

	trainOpts, err := a.initTrainingDeps(src)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	a.trainUC = usecase.NewTrainingUC(
		a.ctx,
		collabModel,
		contentModel,
		collector,
		a.logger,
		usecase.TrainingCfg{
			MaxAge:        a.cfg.Training.MaxAge,
			RetryInterval: a.cfg.Training.RetryInterval,
			ArtifactsDir:  a.cfg.App.ArtifactsDir,
			RecordTimeout: a.cfg.Training.RecordTimeout,
		},
		trainOpts...,
	)
	a.closer.Add("training", a.trainUC.Wait)

	cache, err := a.initCache()
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	recUC := usecase.NewRecommendationUC(
		collabModel,
		contentModel,
		hybrid.NewRanker(collabModel, contentModel, a.logger),
		a.trainUC,
		cache,
		collector,
		a.logger,
	)

	a.workers = append(a.workers, scheduler.NewRetrainWorker(a.trainUC, a.cfg.Training.CheckInterval, a.logger))

	a.grpcSrv = v1Grpc.NewGRPCServer(a.cfg.Grpc, a.logger)
	healthSrv := a.grpcSrv.RegisterServices()
	a.workers = append(a.workers, v1Grpc.NewHealthReporter(healthSrv, a.trainUC, healthInterval, a.logger))

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, a.cfg.RateLimit, collector.Handler(), a.logger)
	router.Init(recUC, a.trainUC)
	a.httpSrv = v1Http.NewServer(r, a.cfg.Http)

	return nil
}

func (a *App) initSources() (*sources, error) {
	if a.cfg.App.DataSource == config.DataSourceSQLite {
		store, err := sqlite.Open(a.cfg.SQLite.Path)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		a.closer.AddErrFunc("sqlite", store.Close)
		a.logger.Infof("using sqlite data source at %s", a.cfg.SQLite.Path)

		if a.cfg.SQLite.InitSchema {
			if err := store.ApplySchema(a.ctx); err != nil {
				return nil, e.Wrap(whereami.WhereAmI(), err)
			}
		}

		return &sources{interactions: store, catalog: store}, nil
	}

	db, err := initPGDB(a.ctx, a.logger, a.cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddFunc("postgres", db.Close)

	return &sources{
		interactions: pgdb.NewInteractionRepo(db.Pool),
		catalog:      pgdb.NewCatalogRepo(db.Pool),
		db:           db,
	}, nil
}

func (a *App) initEncoder() (content.Encoder, error) {
	switch a.cfg.Encoder.Kind {
	case config.EncoderOllama:
		a.logger.Infof("using ollama encoder %s at %s, dim=%d", a.cfg.Encoder.Model, a.cfg.Encoder.URL, a.cfg.Encoder.Dim)
		return ml_service.NewEmbeddingService(a.cfg.Encoder, a.logger), nil
	case config.EncoderHashing:
		return content.NewHashingEncoder(a.cfg.Encoder.Dim), nil
	default:
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrIncorrectEnvVariable)
	}
}

func (a *App) initQdrant() (*qdrantRepo.IndexBuilder, error) {
	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddErrFunc("qdrant", qdrantClient.Close)

	ctx, cancel := context.WithTimeout(a.ctx, dependencyTimeout)
	defer cancel()
	if err := qdrantClient.Ping(ctx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return qdrantRepo.NewIndexBuilder(qdrantClient.Client, a.cfg.Qdrant, a.logger), nil
}

func (a *App) initTrainingDeps(src *sources) ([]usecase.TrainingOption, error) {
	var opts []usecase.TrainingOption

	if a.cfg.Minio.Enabled {
		minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		ctx, cancel := context.WithTimeout(a.ctx, dependencyTimeout)
		err = clients.EnsureBucket(ctx, minioClient, a.cfg.Minio.BucketName)
		cancel()
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		store := minioInfra.NewArtifactStore(s3Repo.NewArtifactRepo(minioClient, a.cfg.Minio), a.logger, a.ctx)
		a.closer.AddFunc("artifact cleanup", store.Wait)
		opts = append(opts, usecase.WithArtifactStore(store))
	}

	if src.db == nil {
		return opts, nil
	}

	outboxRepo := pgdb.NewOutboxEventRepo(src.db.Pool)
	opts = append(opts, usecase.WithHistory(src.db.Pool, pgdb.NewTrainingRunRepo(), outboxRepo))

	if a.cfg.Kafka.Enabled {
		producer := kafka.NewProducer(a.logger, a.cfg.Kafka)
		if err := producer.EnsureTopic(dependencyTimeout); err != nil {
			a.logger.Warnf("kafka topic %s is not ready: %v", a.cfg.Kafka.Topic, err)
		}
		a.closer.AddErrFunc("kafka producer", producer.Close)

		a.workers = append(a.workers, kafka.NewOutboxWorker(outboxRepo, a.logger, producer, kafka.OutboxWorkerCfg{
			BatchSize:    a.cfg.Kafka.OutboxBatchSize,
			PollInterval: a.cfg.Kafka.OutboxPoll,
			DBConnStr:    src.db.Dsn,
		}))
	}

	return opts, nil
}

// initCache возвращает nil-интерфейс, если Redis выключен.
func (a *App) initCache() (usecase.RankingCache, error) {
	if !a.cfg.Redis.Enabled {
		return nil, nil
	}

	redisClient := clients.NewRedisClient(a.cfg.Redis)
	a.closer.AddErrFunc("redis", redisClient.Close)

	ctx, cancel := context.WithTimeout(a.ctx, dependencyTimeout)
	defer cancel()
	if err := redisClient.Ping(ctx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return redis.NewRankingCache(redisClient, a.cfg.Redis, a.logger), nil
}

// Run поднимает модели, запускает серверы и фоновые процессы и блокируется до сигнала остановки.
func (a *App) Run() error {
	a.trainUC.Restore(a.ctx)
	if a.cfg.Training.TrainOnStart {
		if outcome, err := a.trainUC.TrainAsync(); err != nil {
			a.logger.Errorf(err, "failed to start initial training")
		} else {
			a.logger.Infof("initial training: %s", outcome)
		}
	}

	for _, w := range a.workers {
		w.Start(a.ctx)
	}

	grpcErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			a.logger.Errorf(err, "gRPC server failed")
			grpcErrCh <- err
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on %s", a.httpSrv.Addr())
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		a.logger.Errorf(appErr, "gRPC server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	// === Graceful shutdown ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.httpSrv.Stop(shutdownCtx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	if err := a.grpcSrv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		a.logger.Errorf(err, "gRPC server shutdown error")
	}

	for _, w := range a.workers {
		w.Stop()
	}
	a.cancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Warnf("%v", err)
	}

	a.logger.Infof("Application shutdown complete")
	return appErr
}

func initPGDB(ctx context.Context, logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(ctx, cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(ctx); err != nil {
		logger.Errorf(err, "failed to ping database")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
