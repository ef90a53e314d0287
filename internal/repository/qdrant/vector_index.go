package qdrant

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/recommender/content"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

const upsertChunk = 256

// pointsClient — подмножество *qdrant.Client, которое использует индекс.
type pointsClient interface {
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	ListCollections(ctx context.Context) ([]string, error)
	ListAliases(ctx context.Context) ([]*qdrant.AliasDescription, error)
	UpdateAliases(ctx context.Context, actions []*qdrant.AliasOperations) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// IndexBuilder строит индекс контентной модели в Qdrant. Каждая сборка пишется в свою коллекцию
// <base>_<buildID>, после чего алиас <base> переключается на неё одной операцией.
// Коллекции старше предыдущей сборки удаляются.
type IndexBuilder struct {
	client pointsClient
	cfg    *cfg.QdrantCfg
	logger logger.Logger
}

func NewIndexBuilder(client pointsClient, cfg *cfg.QdrantCfg, logger logger.Logger) *IndexBuilder {
	return &IndexBuilder{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

func (b *IndexBuilder) Build(ctx context.Context, buildID string, ids []int64, vectors [][]float32) (content.Index, error) {
	if len(ids) != len(vectors) {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrDimensionMismatch)
	}
	if len(vectors) == 0 {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("empty embedding table"))
	}

	dim := len(vectors[0])
	collection := b.collectionName(buildID)

	if err := b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Euclid,
		}),
	}); err != nil {
		return nil, fmt.Errorf("%s: failed to create collection %s: %w", whereami.WhereAmI(), collection, err)
	}

	if err := b.upsert(ctx, collection, dim, ids, vectors); err != nil {
		b.dropCollection(ctx, collection)
		return nil, err
	}

	previous, err := b.switchAlias(ctx, collection)
	if err != nil {
		b.dropCollection(ctx, collection)
		return nil, err
	}

	b.pruneCollections(ctx, collection, previous)

	return &VectorIndex{
		client:     b.client,
		collection: collection,
		dim:        dim,
		size:       len(ids),
	}, nil
}

func (b *IndexBuilder) upsert(ctx context.Context, collection string, dim int, ids []int64, vectors [][]float32) error {
	for start := 0; start < len(ids); start += upsertChunk {
		end := min(start+upsertChunk, len(ids))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			if len(vectors[i]) != dim {
				return e.Wrap(whereami.WhereAmI(), e.ErrDimensionMismatch)
			}
			if ids[i] < 0 {
				return e.Wrap(whereami.WhereAmI(), e.ErrInvalidID)
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(ids[i])),
				Vectors: qdrant.NewVectorsDense(vectors[i]),
				Payload: qdrant.NewValueMap(map[string]any{"product_id": ids[i]}),
			})
		}

		if _, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

// switchAlias переводит алиас на collection и возвращает коллекцию, на которую он указывал раньше.
func (b *IndexBuilder) switchAlias(ctx context.Context, collection string) (string, error) {
	aliases, err := b.client.ListAliases(ctx)
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	var previous string
	actions := make([]*qdrant.AliasOperations, 0, 2)
	for _, a := range aliases {
		if a.GetAliasName() == b.cfg.CollectionName {
			previous = a.GetCollectionName()
			actions = append(actions, qdrant.NewAliasDelete(b.cfg.CollectionName))
			break
		}
	}
	actions = append(actions, qdrant.NewAliasCreate(b.cfg.CollectionName, collection))

	if err := b.client.UpdateAliases(ctx, actions); err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return previous, nil
}

// pruneCollections удаляет коллекции прошлых сборок, кроме текущей и предыдущей:
// предыдущим снимком ещё могут пользоваться запросы, начатые до публикации нового.
func (b *IndexBuilder) pruneCollections(ctx context.Context, current, previous string) {
	collections, err := b.client.ListCollections(ctx)
	if err != nil {
		b.logger.Warnf("failed to list qdrant collections: %v", err)
		return
	}

	prefix := b.cfg.CollectionName + "_"
	for _, name := range collections {
		if !strings.HasPrefix(name, prefix) || name == current || name == previous {
			continue
		}
		b.dropCollection(ctx, name)
	}
}

func (b *IndexBuilder) dropCollection(ctx context.Context, name string) {
	if err := b.client.DeleteCollection(ctx, name); err != nil {
		b.logger.Warnf("failed to delete qdrant collection %s: %v", name, err)
	}
}

func (b *IndexBuilder) collectionName(buildID string) string {
	return b.cfg.CollectionName + "_" + strings.ReplaceAll(buildID, "-", "")
}

// VectorIndex — индекс одной сборки в Qdrant. Запросы идут в коллекцию сборки, а не в алиас,
// поэтому снимок всегда читает свои собственные векторы.
type VectorIndex struct {
	client     pointsClient
	collection string
	dim        int
	size       int
}

func (v *VectorIndex) Dim() int { return v.dim }

func (v *VectorIndex) Len() int { return v.size }

// Search возвращает k ближайших точек. Для метрики Euclid Qdrant отдаёт расстояние в поле score.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]content.Neighbor, error) {
	if len(query) != v.dim {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrDimensionMismatch)
	}
	if k <= 0 {
		return []content.Neighbor{}, nil
	}

	points, err := v.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: v.collection,
		Query:          qdrant.NewQueryDense(query),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make([]content.Neighbor, 0, len(points))
	for _, p := range points {
		result = append(result, content.Neighbor{
			ProductID: int64(p.GetId().GetNum()),
			Distance:  float64(p.GetScore()),
		})
	}

	slices.SortFunc(result, func(a, b content.Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})

	return result, nil
}
