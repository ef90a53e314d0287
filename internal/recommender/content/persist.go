package content

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	// IndexFileName — файл индекса внутри каталога снимка.
	IndexFileName = "index.flat"
	// MetadataFileName — метаданные снимка: индекс товаров, таблица эмбеддингов, размерность.
	MetadataFileName = "metadata.json"

	formatVersion = 1
	indexMagic    = "RFLT"
	maxIndexDim   = 1 << 16
	maxIndexRows  = 1 << 24
)

type metadata struct {
	FormatVersion  int         `json:"format_version"`
	BuildID        string      `json:"build_id"`
	EncoderVersion string      `json:"encoder_version"`
	Dimension      int         `json:"dimension"`
	ProductIDs     []int64     `json:"product_ids"`
	Embeddings     [][]float32 `json:"embeddings"`
	BuiltAt        time.Time   `json:"built_at"`
}

// Save пишет текущий снимок в каталог dir. Оба файла сначала пишутся во временный каталог,
// который затем заменяет dir, поэтому читатель видит либо старый снимок целиком, либо новый.
func (m *Model) Save(dir string) error {
	const op = "content.Model.Save"

	snap := m.snap.Load()
	if snap == nil {
		return e.Wrap(op, e.ErrNotTrained)
	}

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return e.Wrap(op, err)
	}

	tmp := filepath.Join(parent, fmt.Sprintf(".%s.tmp-%s", filepath.Base(dir), uuid.NewString()))
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return e.Wrap(op, err)
	}
	defer os.RemoveAll(tmp)

	meta := metadata{
		FormatVersion:  formatVersion,
		BuildID:        snap.buildID,
		EncoderVersion: snap.encoderVersion,
		Dimension:      snap.dim,
		ProductIDs:     snap.products.IDs(),
		Embeddings:     snap.embeddings,
		BuiltAt:        snap.builtAt.UTC(),
	}

	if err := writeFile(filepath.Join(tmp, MetadataFileName), func(w io.Writer) error {
		return json.NewEncoder(w).Encode(meta)
	}); err != nil {
		return e.Wrap(op, err)
	}

	if err := writeFile(filepath.Join(tmp, IndexFileName), func(w io.Writer) error {
		return writeIndex(w, snap.dim, meta.ProductIDs, snap.embeddings)
	}); err != nil {
		return e.Wrap(op, err)
	}

	old := ""
	if _, err := os.Stat(dir); err == nil {
		old = filepath.Join(parent, fmt.Sprintf(".%s.old-%s", filepath.Base(dir), uuid.NewString()))
		if err := os.Rename(dir, old); err != nil {
			return e.Wrap(op, err)
		}
	}

	if err := os.Rename(tmp, dir); err != nil {
		if old != "" {
			_ = os.Rename(old, dir)
		}
		return e.Wrap(op, err)
	}

	if old != "" {
		_ = os.RemoveAll(old)
	}

	return nil
}

// Load читает снимок из dir и публикует его. Отсутствующий, повреждённый или построенный
// другим кодировщиком снимок даёт ErrIncompatibleSnapshot; текущий снимок при этом не меняется.
func (m *Model) Load(dir string) error {
	const op = "content.Model.Load"

	snap, err := readSnapshot(dir, m.encoder)
	if err != nil {
		return e.Wrap(op, fmt.Errorf("%w: %w", e.ErrIncompatibleSnapshot, err))
	}

	m.snap.Store(snap)
	m.log.Infof("%s: loaded snapshot %s with %d products from %s", op, snap.buildID, snap.products.Len(), dir)
	return nil
}

func readSnapshot(dir string, enc Encoder) (*Snapshot, error) {
	metaFile, err := os.Open(filepath.Join(dir, MetadataFileName))
	if err != nil {
		return nil, err
	}
	defer metaFile.Close()

	var meta metadata
	if err := json.NewDecoder(bufio.NewReader(metaFile)).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	switch {
	case meta.FormatVersion != formatVersion:
		return nil, fmt.Errorf("format version %d", meta.FormatVersion)
	case meta.EncoderVersion != enc.Version():
		return nil, fmt.Errorf("encoder %q, current %q", meta.EncoderVersion, enc.Version())
	case meta.Dimension != enc.Dimension() || meta.Dimension <= 0:
		return nil, fmt.Errorf("dimension %d, current %d", meta.Dimension, enc.Dimension())
	case len(meta.ProductIDs) == 0 || len(meta.ProductIDs) != len(meta.Embeddings):
		return nil, fmt.Errorf("%d products for %d embeddings", len(meta.ProductIDs), len(meta.Embeddings))
	case !slices.IsSorted(meta.ProductIDs):
		return nil, errors.New("product index is not sorted")
	}

	indexFile, err := os.Open(filepath.Join(dir, IndexFileName))
	if err != nil {
		return nil, err
	}
	defer indexFile.Close()

	dim, ids, vectors, err := readIndex(bufio.NewReader(indexFile))
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	if dim != meta.Dimension || !slices.Equal(ids, meta.ProductIDs) {
		return nil, errors.New("index does not match metadata")
	}

	index, err := NewFlatIndex(dim, ids, vectors)
	if err != nil {
		return nil, err
	}

	products := domain.NewIDIndex(meta.ProductIDs)
	if products.Len() != len(meta.ProductIDs) {
		return nil, errors.New("duplicate product ids")
	}

	return &Snapshot{
		buildID:        meta.BuildID,
		products:       products,
		embeddings:     meta.Embeddings,
		index:          index,
		dim:            meta.Dimension,
		encoderVersion: meta.EncoderVersion,
		builtAt:        meta.BuiltAt,
	}, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Формат индекса: magic, dim uint32, n uint32, n×int64 id, n×dim×float32. Little endian.
func writeIndex(w io.Writer, dim int, ids []int64, vectors [][]float32) error {
	if _, err := io.WriteString(w, indexMagic); err != nil {
		return err
	}
	header := []uint32{uint32(dim), uint32(len(ids))}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, ids); err != nil {
		return err
	}
	for _, v := range vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readIndex(r io.Reader) (int, []int64, [][]float32, error) {
	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, nil, nil, err
	}
	if string(magic) != indexMagic {
		return 0, nil, nil, errors.New("bad magic")
	}

	header := make([]uint32, 2)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return 0, nil, nil, err
	}
	dim, n := int(header[0]), int(header[1])
	if dim <= 0 || dim > maxIndexDim || n > maxIndexRows {
		return 0, nil, nil, fmt.Errorf("bad header: dim=%d n=%d", dim, n)
	}

	ids := make([]int64, n)
	if err := binary.Read(r, binary.LittleEndian, ids); err != nil {
		return 0, nil, nil, err
	}

	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vectors[i]); err != nil {
			return 0, nil, nil, err
		}
	}

	return dim, ids, vectors, nil
}
