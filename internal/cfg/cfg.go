package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/jimlawless/whereami"
)

// Источники данных витрины.
const (
	DataSourcePostgres = "postgres"
	DataSourceSQLite   = "sqlite"
)

// Реализации текстового энкодера.
const (
	EncoderHashing = "hashing"
	EncoderOllama  = "ollama"
)

type Config struct {
	App       *AppCfg
	Http      *HTTPConfig
	Grpc      *GRPCConfig
	Db        *PGDBCfg // nil, если DATA_SOURCE=sqlite
	SQLite    *SQLiteCfg
	Redis     *RedisCfg
	Qdrant    *QdrantCfg
	Minio     *MinIOCfg
	Kafka     *KafkaCfg
	Encoder   *EncoderCfg
	Training  *TrainingCfg
	RateLimit *RateLimitCfg
}

type AppCfg struct {
	Env          string
	LogLevel     string
	ArtifactsDir string // каталог снимка контентной модели
	DataSource   string
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

type PGDBCfg struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	ConnectTimeout time.Duration
	MigrationsPath string
}

type SQLiteCfg struct {
	Path       string
	InitSchema bool // создать таблицы витрины, если их нет
}

type RedisCfg struct {
	Enabled     bool
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	RankingTTL  time.Duration
	KeyPrefix   string
}

type QdrantCfg struct {
	Enabled        bool
	Port           int
	Host           string
	ApiKey         string
	CollectionName string // базовое имя: алиас указывает на коллекцию текущей сборки
	UseTLS         bool
}

type MinIOCfg struct {
	Enabled           bool
	MinioEndpoint     string
	BucketName        string
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
}

type KafkaCfg struct {
	Enabled           bool
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
	OutboxBatchSize   int
	OutboxPoll        time.Duration
}

type EncoderCfg struct {
	Kind            string
	URL             string
	Model           string
	Dim             int
	BatchSize       int
	MaxConcurrent   int
	MaxRetries      int
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type TrainingCfg struct {
	MaxAge        time.Duration
	CheckInterval time.Duration
	RetryInterval time.Duration
	TrainOnStart  bool
	RecordTimeout time.Duration
}

type RateLimitCfg struct {
	TrainRequests int
	TrainWindow   time.Duration
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	app, err := loadAppCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var db *PGDBCfg
	if app.DataSource == DataSourcePostgres {
		if db, err = loadPGDBCfg(log); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
	}

	sqlite, err := loadSQLiteCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if kafka.Enabled && db == nil {
		return nil, fmt.Errorf("%s: kafka outbox requires DATA_SOURCE=%s", whereami.WhereAmI(), DataSourcePostgres)
	}

	encoder, err := loadEncoderCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	training, err := loadTrainingCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	rateLimit, err := loadRateLimitCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		App:       app,
		Http:      http,
		Grpc:      loadGRPCConfig(),
		Db:        db,
		SQLite:    sqlite,
		Redis:     redis,
		Qdrant:    qdrant,
		Minio:     minio,
		Kafka:     kafka,
		Encoder:   encoder,
		Training:  training,
		RateLimit: rateLimit,
	}, nil
}

func loadAppCfg() (*AppCfg, error) {
	const (
		defaultEnv          = "dev"
		defaultLogLevel     = "info"
		defaultArtifactsDir = "artifacts/content"
	)

	source := getEnvOrDefault("DATA_SOURCE", DataSourcePostgres)
	if source != DataSourcePostgres && source != DataSourceSQLite {
		return nil, fmt.Errorf("DATA_SOURCE: unknown value %q: %w", source, e.ErrIncorrectEnvVariable)
	}

	return &AppCfg{
		Env:          getEnvOrDefault("APP_ENV", defaultEnv),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", defaultLogLevel),
		ArtifactsDir: getEnvOrDefault("ARTIFACTS_DIR", defaultArtifactsDir),
		DataSource:   source,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultOutboxBatchSize   = 50
		defaultOutboxPoll        = 5 * time.Second
	)

	enabled, err := parseBoolEnv("KAFKA_ENABLED", false)
	if err != nil {
		return nil, e.Wrap("KAFKA_ENABLED", err)
	}
	if !enabled {
		return &KafkaCfg{}, nil
	}

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}
	brokers := strings.Split(brokerStr, ",")

	topic := getEnvOrDefault("KAFKA_TOPIC", "recommender.model-events")

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	batchSize, err := parseIntEnv("OUTBOX_BATCH_SIZE", defaultOutboxBatchSize)
	if err != nil {
		return nil, e.Wrap("OUTBOX_BATCH_SIZE", err)
	}

	poll, err := parseDurationEnv("OUTBOX_POLL_INTERVAL", defaultOutboxPoll)
	if err != nil {
		return nil, e.Wrap("OUTBOX_POLL_INTERVAL", err)
	}

	return &KafkaCfg{
		Enabled:           true,
		Brokers:           brokers,
		Topic:             topic,
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
		OutboxBatchSize:   batchSize,
		OutboxPoll:        poll,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultEndpoint = "minio:9000"
		defaultBucket   = "recommender-artifacts"
	)

	enabled, err := parseBoolEnv("MINIO_ENABLED", false)
	if err != nil {
		log.Errorf(err, "invalid MINIO_ENABLED")
		return nil, err
	}

	useSSL, err := parseBoolEnv("MINIO_USE_SSL", false)
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		Enabled:           enabled,
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnvOrDefault("BUCKET_NAME", defaultBucket),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 60 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	// POST /train/sync держит соединение на всё время обучения
	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"

		defaultMaxConns       = 10
		defaultConnectTimeout = 5 * time.Second
		defaultMigrationsPath = "db/migrations"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	maxConns, err := parseIntEnv("POSTGRES_MAX_CONNS", defaultMaxConns)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if maxConns <= 0 {
		return nil, fmt.Errorf("POSTGRES_MAX_CONNS must be positive: %w", e.ErrIncorrectEnvVariable)
	}

	connectTimeout, err := parseDurationEnv("POSTGRES_CONNECT_TIMEOUT", defaultConnectTimeout)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &PGDBCfg{
		Host:           getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:           getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:           user,
		Password:       password,
		DBName:         dbName,
		SSLMode:        getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MaxConns:       maxConns,
		ConnectTimeout: connectTimeout,
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath),
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = 6334
		defaultCollection     = "product_content"
	)

	enabled, err := parseBoolEnv("QDRANT_ENABLED", false)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_ENABLED")
		return nil, err
	}

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := parseBoolEnv("QDRANT_USE_TLS", false)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	return &QdrantCfg{
		Enabled:        enabled,
		Host:           getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:           port,
		ApiKey:         getEnv("QDRANT__SERVICE__API_KEY"),
		CollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:         useTLS,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultRankingTTL   = 10 * time.Minute
		defaultKeyPrefix    = "rec:"
	)

	enabled, err := parseBoolEnv("REDIS_ENABLED", false)
	if err != nil {
		log.Errorf(err, "invalid REDIS_ENABLED")
		return nil, err
	}

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	rankingTTL, err := parseDurationEnv("RANKING_TTL", defaultRankingTTL)
	if err != nil {
		log.Errorf(err, "invalid RANKING_TTL")
		return nil, err
	}

	return &RedisCfg{
		Enabled:     enabled,
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     max(readTimeout, writeTimeout),
		RankingTTL:  rankingTTL,
		KeyPrefix:   getEnvOrDefault("REDIS_KEY_PREFIX", defaultKeyPrefix),
	}, nil
}

func loadEncoderCfg() (*EncoderCfg, error) {
	const (
		defaultURL             = "http://ollama:11434"
		defaultModel           = "nomic-embed-text"
		defaultDim             = 384
		defaultBatchSize       = 64
		defaultMaxConcurrent   = 4
		defaultMaxRetries      = 3
		defaultTimeout         = 30 * time.Second
		defaultBreakerFailures = 5
		defaultBreakerTimeout  = 30 * time.Second
	)

	kind := getEnvOrDefault("ENCODER", EncoderHashing)
	if kind != EncoderHashing && kind != EncoderOllama {
		return nil, fmt.Errorf("ENCODER: unknown value %q: %w", kind, e.ErrIncorrectEnvVariable)
	}

	dim, err := parseIntEnv("ENCODER_DIM", defaultDim)
	if err != nil || dim <= 0 {
		return nil, fmt.Errorf("ENCODER_DIM: %w", e.ErrIncorrectEnvVariable)
	}

	batchSize, err := parseIntEnv("ENCODER_BATCH_SIZE", defaultBatchSize)
	if err != nil || batchSize <= 0 {
		return nil, fmt.Errorf("ENCODER_BATCH_SIZE: %w", e.ErrIncorrectEnvVariable)
	}

	maxConcurrent, err := parseIntEnv("ENCODER_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		return nil, e.Wrap("ENCODER_MAX_CONCURRENT", err)
	}

	maxRetries, err := parseIntEnv("ENCODER_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, e.Wrap("ENCODER_MAX_RETRIES", err)
	}

	timeout, err := parseDurationEnv("ENCODER_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, e.Wrap("ENCODER_TIMEOUT", err)
	}

	breakerFailures, err := parseIntEnv("ENCODER_BREAKER_FAILURES", defaultBreakerFailures)
	if err != nil || breakerFailures <= 0 {
		return nil, fmt.Errorf("ENCODER_BREAKER_FAILURES: %w", e.ErrIncorrectEnvVariable)
	}

	breakerTimeout, err := parseDurationEnv("ENCODER_BREAKER_TIMEOUT", defaultBreakerTimeout)
	if err != nil {
		return nil, e.Wrap("ENCODER_BREAKER_TIMEOUT", err)
	}

	return &EncoderCfg{
		Kind:            kind,
		URL:             getEnvOrDefault("ENCODER_URL", defaultURL),
		Model:           getEnvOrDefault("ENCODER_MODEL", defaultModel),
		Dim:             dim,
		BatchSize:       batchSize,
		MaxConcurrent:   maxConcurrent,
		MaxRetries:      maxRetries,
		Timeout:         timeout,
		BreakerFailures: uint32(breakerFailures),
		BreakerTimeout:  breakerTimeout,
	}, nil
}

func loadSQLiteCfg() (*SQLiteCfg, error) {
	initSchema, err := parseBoolEnv("SQLITE_INIT_SCHEMA", false)
	if err != nil {
		return nil, e.Wrap("SQLITE_INIT_SCHEMA", err)
	}

	return &SQLiteCfg{
		Path:       getEnvOrDefault("SQLITE_PATH", "data/storefront.db"),
		InitSchema: initSchema,
	}, nil
}

func loadTrainingCfg() (*TrainingCfg, error) {
	const (
		defaultMaxAge        = 24 * time.Hour
		defaultCheckInterval = 15 * time.Minute
		defaultRetryInterval = time.Hour
		defaultRecordTimeout = 5 * time.Second
	)

	maxAge, err := parseDurationEnv("MODEL_MAX_AGE", defaultMaxAge)
	if err != nil {
		return nil, e.Wrap("MODEL_MAX_AGE", err)
	}

	checkInterval, err := parseDurationEnv("RETRAIN_CHECK_INTERVAL", defaultCheckInterval)
	if err != nil {
		return nil, e.Wrap("RETRAIN_CHECK_INTERVAL", err)
	}

	retryInterval, err := parseDurationEnv("RETRAIN_RETRY_INTERVAL", defaultRetryInterval)
	if err != nil {
		return nil, e.Wrap("RETRAIN_RETRY_INTERVAL", err)
	}

	trainOnStart, err := parseBoolEnv("TRAIN_ON_START", true)
	if err != nil {
		return nil, e.Wrap("TRAIN_ON_START", err)
	}

	recordTimeout, err := parseDurationEnv("TRAINING_RECORD_TIMEOUT", defaultRecordTimeout)
	if err != nil {
		return nil, e.Wrap("TRAINING_RECORD_TIMEOUT", err)
	}

	return &TrainingCfg{
		MaxAge:        maxAge,
		CheckInterval: checkInterval,
		RetryInterval: retryInterval,
		TrainOnStart:  trainOnStart,
		RecordTimeout: recordTimeout,
	}, nil
}

func loadRateLimitCfg() (*RateLimitCfg, error) {
	const (
		defaultTrainRequests = 5
		defaultTrainWindow   = time.Minute
	)

	requests, err := parseIntEnv("TRAIN_RATE_LIMIT", defaultTrainRequests)
	if err != nil || requests <= 0 {
		return nil, fmt.Errorf("TRAIN_RATE_LIMIT: %w", e.ErrIncorrectEnvVariable)
	}

	window, err := parseDurationEnv("TRAIN_RATE_WINDOW", defaultTrainWindow)
	if err != nil {
		return nil, e.Wrap("TRAIN_RATE_WINDOW", err)
	}

	return &RateLimitCfg{
		TrainRequests: requests,
		TrainWindow:   window,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	boolValue, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return boolValue, nil
}
