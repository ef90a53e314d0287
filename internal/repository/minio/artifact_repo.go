package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ErrObjectNotFound — объекта нет в бакете.
var ErrObjectNotFound = errors.New("object not found")

// ArtifactRepo хранит файлы снимков моделей в бакете MinIO.
type ArtifactRepo struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewArtifactRepo(mc *minio.Client, cfg *cfg.MinIOCfg) *ArtifactRepo {
	return &ArtifactRepo{
		mc:  mc,
		cfg: cfg,
	}
}

// UploadFile загружает локальный файл под ключом key.
func (a *ArtifactRepo) UploadFile(ctx context.Context, key, path string) error {
	if _, err := a.mc.FPutObject(ctx, a.cfg.BucketName, key, path, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// DownloadFile сохраняет объект key в локальный файл path.
func (a *ArtifactRepo) DownloadFile(ctx context.Context, key, path string) error {
	if err := a.mc.FGetObject(ctx, a.cfg.BucketName, key, path, minio.GetObjectOptions{}); err != nil {
		if isNotFound(err) {
			return ErrObjectNotFound
		}
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// PutText записывает небольшой текстовый объект, например указатель на последнюю сборку.
func (a *ArtifactRepo) PutText(ctx context.Context, key, value string) error {
	reader := strings.NewReader(value)
	if _, err := a.mc.PutObject(ctx, a.cfg.BucketName, key, reader, reader.Size(), minio.PutObjectOptions{
		ContentType: "text/plain",
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// GetText читает текстовый объект целиком.
func (a *ArtifactRepo) GetText(ctx context.Context, key string) (string, error) {
	obj, err := a.mc.GetObject(ctx, a.cfg.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, obj); err != nil {
		if isNotFound(err) {
			return "", ErrObjectNotFound
		}
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// Delete удаляет объект из MinIO по указанному ключу.
func (a *ArtifactRepo) Delete(ctx context.Context, key string) error {
	if err := a.mc.RemoveObject(ctx, a.cfg.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func isNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
