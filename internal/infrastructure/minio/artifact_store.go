package minio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/DRSN-tech/recommender/internal/recommender/content"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/jitter"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	contentPrefix = "content"
	latestKey     = contentPrefix + "/LATEST"

	cleanupAttempts = 3
	cleanupTimeout  = 30 * time.Second
)

// snapshotFiles — файлы, из которых состоит снимок контентной модели.
var snapshotFiles = []string{content.IndexFileName, content.MetadataFileName}

// ObjectRepository — операции с объектами хранилища.
type ObjectRepository interface {
	UploadFile(ctx context.Context, key, path string) error
	DownloadFile(ctx context.Context, key, path string) error
	PutText(ctx context.Context, key, value string) error
	GetText(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ArtifactStore копирует снимки контентной модели в MinIO и восстанавливает последний из них.
// Объекты сборки лежат под content/<buildID>/, указатель на последнюю сборку в content/LATEST.
type ArtifactStore struct {
	repo        ObjectRepository
	logger      logger.Logger
	shutdownCtx context.Context
	wg          sync.WaitGroup
}

func NewArtifactStore(repo ObjectRepository, logger logger.Logger, shutdownCtx context.Context) *ArtifactStore {
	return &ArtifactStore{
		repo:        repo,
		logger:      logger,
		shutdownCtx: shutdownCtx,
	}
}

// Upload параллельно загружает файлы снимка и только после этого переключает указатель LATEST.
// При ошибке уже загруженные объекты удаляются в фоне.
func (a *ArtifactStore) Upload(ctx context.Context, buildID, dir string) error {
	const op = "ArtifactStore.Upload"

	var (
		mu       sync.Mutex
		uploaded = make([]string, 0, len(snapshotFiles))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range snapshotFiles {
		g.Go(func() error {
			key := objectKey(buildID, name)
			if err := a.repo.UploadFile(gctx, key, filepath.Join(dir, name)); err != nil {
				return fmt.Errorf("upload %s failed: %w", name, err)
			}

			mu.Lock()
			uploaded = append(uploaded, key)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = a.repo.PutText(ctx, latestKey, buildID)
	}
	if err != nil {
		a.cleanup(uploaded)
		return e.Wrap(op, err)
	}

	a.logger.Infof("%s: content snapshot %s uploaded", op, buildID)
	return nil
}

// DownloadLatest скачивает последнюю сборку в dir и возвращает её идентификатор.
// Файлы сначала пишутся во временный каталог, который затем заменяет dir.
func (a *ArtifactStore) DownloadLatest(ctx context.Context, dir string) (string, error) {
	const op = "ArtifactStore.DownloadLatest"

	buildID, err := a.repo.GetText(ctx, latestKey)
	if err != nil {
		return "", e.Wrap(op, err)
	}
	if buildID == "" {
		return "", e.Wrap(op, errors.New("empty latest pointer"))
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", e.Wrap(op, err)
	}

	tmp, err := os.MkdirTemp(filepath.Dir(dir), filepath.Base(dir)+".download-")
	if err != nil {
		return "", e.Wrap(op, err)
	}
	defer os.RemoveAll(tmp)

	for _, name := range snapshotFiles {
		if err := a.repo.DownloadFile(ctx, objectKey(buildID, name), filepath.Join(tmp, name)); err != nil {
			return "", e.Wrap(op, fmt.Errorf("download %s: %w", name, err))
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return "", e.Wrap(op, err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return "", e.Wrap(op, err)
	}

	a.logger.Infof("%s: content snapshot %s downloaded", op, buildID)
	return buildID, nil
}

// Wait дожидается фоновой очистки.
func (a *ArtifactStore) Wait() {
	a.wg.Wait()
}

func (a *ArtifactStore) cleanup(keys []string) {
	if len(keys) == 0 {
		return
	}
	a.wg.Add(1)
	go a.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет объекты неудачной загрузки с экспоненциальной задержкой и jitter.
func (a *ArtifactStore) cleanupUploadedKeys(keys []string) {
	defer a.wg.Done()
	const op = "ArtifactStore.cleanupUploadedKeys"

	ctx, cancel := context.WithTimeout(a.shutdownCtx, cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < cleanupAttempts; attempt++ {
			err := a.repo.Delete(ctx, key)
			if err == nil {
				break
			}
			if attempt == cleanupAttempts-1 {
				a.logger.Errorf(err, "%s: failed to delete %s", op, key)
				break
			}

			select {
			case <-ctx.Done():
				a.logger.Warnf("%s: cleanup interrupted by shutdown, key=%v", op, key)
				return
			case <-time.After(jitter.ExponentialBackoff(100*time.Millisecond, 2*time.Second, attempt, 0.2)):
			}
		}
	}
}

func objectKey(buildID, name string) string {
	return path.Join(contentPrefix, buildID, name)
}
