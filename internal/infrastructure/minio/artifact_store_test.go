package minio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DRSN-tech/recommender/internal/recommender/content"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObjects struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failKey   string
	deleted   []string
	failTimes int
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) UploadFile(_ context.Context, key, path string) error {
	if key == m.failKey {
		return errors.New("boom")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjects) DownloadFile(_ context.Context, key, path string) error {
	m.mu.Lock()
	data, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return errors.New("not found")
	}
	return os.WriteFile(path, data, 0o644)
}

func (m *memObjects) PutText(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = []byte(value)
	return nil
}

func (m *memObjects) GetText(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return "", errors.New("not found")
	}
	return string(data), nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTimes > 0 {
		m.failTimes--
		return errors.New("temporary")
	}
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func writeSnapshot(t *testing.T, dir, marker string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, content.IndexFileName), []byte("index-"+marker), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, content.MetadataFileName), []byte("meta-"+marker), 0o644))
}

func TestArtifactStore_UploadAndDownload(t *testing.T) {
	repo := newMemObjects()
	store := NewArtifactStore(repo, logger.NewNop(), context.Background())
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "content")
	writeSnapshot(t, src, "v1")
	require.NoError(t, store.Upload(ctx, "build-1", src))

	assert.Equal(t, "build-1", string(repo.objects[latestKey]))
	assert.Contains(t, repo.objects, "content/build-1/index.flat")
	assert.Contains(t, repo.objects, "content/build-1/metadata.json")

	dst := filepath.Join(t.TempDir(), "restored", "content")
	writeSnapshot(t, dst, "stale")

	buildID, err := store.DownloadLatest(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, "build-1", buildID)

	data, err := os.ReadFile(filepath.Join(dst, content.IndexFileName))
	require.NoError(t, err)
	assert.Equal(t, "index-v1", string(data))
}

func TestArtifactStore_UploadFailureKeepsLatestAndCleansUp(t *testing.T) {
	repo := newMemObjects()
	store := NewArtifactStore(repo, logger.NewNop(), context.Background())
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "content")
	writeSnapshot(t, src, "v1")
	require.NoError(t, store.Upload(ctx, "build-1", src))

	repo.failKey = "content/build-2/metadata.json"
	repo.failTimes = 1
	writeSnapshot(t, src, "v2")
	require.Error(t, store.Upload(ctx, "build-2", src))
	store.Wait()

	assert.Equal(t, "build-1", string(repo.objects[latestKey]))
	assert.NotContains(t, repo.objects, "content/build-2/index.flat")
}

func TestArtifactStore_DownloadWithoutLatest(t *testing.T) {
	store := NewArtifactStore(newMemObjects(), logger.NewNop(), context.Background())

	dst := filepath.Join(t.TempDir(), "content")
	_, err := store.DownloadLatest(context.Background(), dst)
	require.Error(t, err)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}
