package firestore

import (
	"context"
	"errors"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ragguard/pkg/domain/interfaces"
	"github.com/secmon-lab/ragguard/pkg/domain/model"
	"github.com/secmon-lab/ragguard/pkg/repository/ingest"
	"github.com/secmon-lab/ragguard/pkg/utils/logging"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrIndexNotBuilt is returned by Open when no generation has been published
var ErrIndexNotBuilt = errors.New("firestore index has not been built")

const (
	// DocumentsCollection is the collection group holding indexed documents.
	// Its vector index is created by the migrate command.
	DocumentsCollection = "documents"

	// EmbeddingField is the vector field searched with FindNearest
	EmbeddingField = "Embedding"

	distanceField = "VectorDistance"

	// maxNearestLimit is the largest limit FindNearest accepts
	maxNearestLimit = 1000

	indexesCollection = "indexes"
	pointerCollection = "index_pointers"
	currentPointerID  = "current"
)

// documentDoc is the Firestore representation of an indexed document.
// Embedding is stored as firestore.Vector32 so that FindNearest works.
type documentDoc struct {
	ID        string             `firestore:"ID"`
	Content   string             `firestore:"Content"`
	Metadata  map[string]any     `firestore:"Metadata,omitempty"`
	Seq       int                `firestore:"Seq"`
	Embedding firestore.Vector32 `firestore:"Embedding"`
	Distance  float64            `firestore:"VectorDistance,omitempty"`
}

// manifestDoc describes one published generation of the index
type manifestDoc struct {
	Generation string    `firestore:"Generation"`
	ModelID    string    `firestore:"ModelID"`
	Count      int       `firestore:"Count"`
	BuiltAt    time.Time `firestore:"BuiltAt"`

	// SupersededAt is set when another generation is published
	SupersededAt time.Time `firestore:"SupersededAt,omitempty"`
}

type pointerDoc struct {
	Generation string `firestore:"Generation"`
}

// IndexBuilder persists embedding indexes in Firestore. Every Build writes
// a new generation and only then moves the "current" pointer to it, so a
// reader never observes a half-written corpus.
type IndexBuilder struct {
	client           *firestore.Client
	embedder         interfaces.Embedder
	cfg              ingest.Config
	collectionPrefix string
	retain           int
	pruneGrace       time.Duration
}

var (
	_ interfaces.IndexBuilder = &IndexBuilder{}
	_ interfaces.IndexPruner  = &IndexBuilder{}
)

const (
	// DefaultRetainGenerations is how many superseded generations Prune keeps
	DefaultRetainGenerations = 1

	// DefaultPruneGrace is how long a superseded generation stays readable
	DefaultPruneGrace = 10 * time.Minute
)

// Option configures an IndexBuilder
type Option func(*IndexBuilder)

// WithCollectionPrefix namespaces every top-level collection, mainly for tests
func WithCollectionPrefix(prefix string) Option {
	return func(b *IndexBuilder) {
		b.collectionPrefix = prefix
	}
}

// WithIngestConfig sets embedding concurrency and batch size
func WithIngestConfig(cfg ingest.Config) Option {
	return func(b *IndexBuilder) {
		b.cfg = cfg
	}
}

// WithRetention sets how many superseded generations Prune keeps and how
// long after being superseded any generation stays readable
func WithRetention(generations int, grace time.Duration) Option {
	return func(b *IndexBuilder) {
		b.retain = generations
		b.pruneGrace = grace
	}
}

// New connects to Firestore. The caller must Close the builder.
func New(ctx context.Context, projectID, databaseID string, embedder interfaces.Embedder, opts ...Option) (*IndexBuilder, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	b := &IndexBuilder{
		client:     client,
		embedder:   embedder,
		retain:     DefaultRetainGenerations,
		pruneGrace: DefaultPruneGrace,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Close closes the Firestore client
func (b *IndexBuilder) Close() error {
	return b.client.Close()
}

func (b *IndexBuilder) indexes() *firestore.CollectionRef {
	return b.client.Collection(b.collectionPrefix + indexesCollection)
}

func (b *IndexBuilder) pointer() *firestore.DocumentRef {
	return b.client.Collection(b.collectionPrefix + pointerCollection).Doc(currentPointerID)
}

func (b *IndexBuilder) documents(generation string) *firestore.CollectionRef {
	return b.indexes().Doc(generation).Collection(DocumentsCollection)
}

// Build embeds docs, writes them as a new generation and publishes it.
// Embedding happens before any write, so an embedding failure leaves the
// previously published generation untouched.
func (b *IndexBuilder) Build(ctx context.Context, docs []model.Document) (interfaces.EmbeddingIndex, error) {
	if b.embedder == nil {
		return nil, goerr.New("embedder is required")
	}

	unique := ingest.Dedupe(docs)
	vectors, err := ingest.EmbedAll(ctx, b.embedder, unique, b.cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build firestore index", goerr.V("documents", len(unique)))
	}

	generation := uuid.Must(uuid.NewV7()).String()
	if err := b.writeGeneration(ctx, generation, unique, vectors); err != nil {
		return nil, err
	}

	manifest := &manifestDoc{
		Generation: generation,
		ModelID:    b.embedder.ModelID(),
		Count:      len(unique),
		BuiltAt:    time.Now().UTC(),
	}
	if _, err := b.indexes().Doc(generation).Set(ctx, manifest); err != nil {
		return nil, goerr.Wrap(err, "failed to write index manifest", goerr.V("generation", generation))
	}

	previous, err := b.currentGeneration(ctx)
	if err != nil && !errors.Is(err, ErrIndexNotBuilt) {
		return nil, err
	}

	if _, err := b.pointer().Set(ctx, &pointerDoc{Generation: generation}); err != nil {
		return nil, goerr.Wrap(err, "failed to publish index generation", goerr.V("generation", generation))
	}

	if previous != "" && previous != generation {
		if _, err := b.indexes().Doc(previous).Update(ctx, []firestore.Update{
			{Path: "SupersededAt", Value: time.Now().UTC()},
		}); err != nil {
			logging.From(ctx).Warn("failed to mark previous index generation as superseded",
				"generation", previous,
				"error", err.Error(),
			)
		}
	}

	return b.newIndex(manifest), nil
}

// Prune deletes generations that are no longer published. The newest
// retained superseded generations are kept, and so is any generation
// superseded less than the grace period ago, so that searches and other
// processes still reading it keep getting results.
func (b *IndexBuilder) Prune(ctx context.Context) error {
	current, err := b.currentGeneration(ctx)
	if err != nil {
		if errors.Is(err, ErrIndexNotBuilt) {
			return nil
		}
		return err
	}

	var stale []manifestDoc
	iter := b.indexes().Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to list index generations")
		}

		var m manifestDoc
		if err := snap.DataTo(&m); err != nil {
			return goerr.Wrap(err, "failed to unmarshal index manifest", goerr.V("id", snap.Ref.ID))
		}
		if m.Generation == "" {
			m.Generation = snap.Ref.ID
		}
		if m.Generation != current {
			stale = append(stale, m)
		}
	}

	// UUIDv7 generations sort by creation time
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].Generation > stale[j].Generation
	})

	now := time.Now().UTC()
	for i, m := range stale {
		if i < b.retain {
			continue
		}
		since := m.SupersededAt
		if since.IsZero() {
			since = m.BuiltAt
		}
		if now.Sub(since) < b.pruneGrace {
			continue
		}
		if err := b.deleteGeneration(ctx, m.Generation); err != nil {
			return err
		}
		logging.From(ctx).Info("pruned index generation", "generation", m.Generation)
	}
	return nil
}

// Open returns the currently published index without rebuilding it. The
// configured embedder must match the model the index was built with.
func (b *IndexBuilder) Open(ctx context.Context) (interfaces.EmbeddingIndex, error) {
	generation, err := b.currentGeneration(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := b.indexes().Doc(generation).Get(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get index manifest", goerr.V("generation", generation))
	}
	var manifest manifestDoc
	if err := snap.DataTo(&manifest); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal index manifest", goerr.V("generation", generation))
	}

	if manifest.ModelID != b.embedder.ModelID() {
		return nil, goerr.Wrap(model.ErrEmbeddingModelMismatch, "persisted index was built with another embedding model",
			goerr.V("index_model", manifest.ModelID),
			goerr.V("query_model", b.embedder.ModelID()),
		)
	}

	return b.newIndex(&manifest), nil
}

func (b *IndexBuilder) newIndex(manifest *manifestDoc) *Index {
	return &Index{
		embedder:   b.embedder,
		modelID:    manifest.ModelID,
		count:      manifest.Count,
		collection: b.documents(manifest.Generation),
	}
}

func (b *IndexBuilder) currentGeneration(ctx context.Context) (string, error) {
	snap, err := b.pointer().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", goerr.Wrap(ErrIndexNotBuilt, "no published index generation")
		}
		return "", goerr.Wrap(err, "failed to get index pointer")
	}

	var p pointerDoc
	if err := snap.DataTo(&p); err != nil {
		return "", goerr.Wrap(err, "failed to unmarshal index pointer")
	}
	if p.Generation == "" {
		return "", goerr.Wrap(ErrIndexNotBuilt, "index pointer is empty")
	}
	return p.Generation, nil
}

func (b *IndexBuilder) writeGeneration(ctx context.Context, generation string, docs []model.Document, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}

	bw := b.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	col := b.documents(generation)

	for i, doc := range docs {
		job, err := bw.Set(col.Doc(doc.ID.String()), &documentDoc{
			ID:        doc.ID.String(),
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Seq:       i,
			Embedding: firestore.Vector32(vectors[i]),
		})
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue document write", goerr.V("id", doc.ID))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to write document",
				goerr.V("generation", generation),
				goerr.V("id", docs[i].ID),
			)
		}
	}
	return nil
}

func (b *IndexBuilder) deleteGeneration(ctx context.Context, generation string) error {
	refs := b.documents(generation).DocumentRefs(ctx)
	bw := b.client.BulkWriter(ctx)
	defer bw.End()

	for {
		ref, err := refs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to list documents of generation", goerr.V("generation", generation))
		}
		if _, err := bw.Delete(ref); err != nil {
			return goerr.Wrap(err, "failed to enqueue document delete", goerr.V("path", ref.Path))
		}
	}

	if _, err := bw.Delete(b.indexes().Doc(generation)); err != nil {
		return goerr.Wrap(err, "failed to enqueue manifest delete", goerr.V("generation", generation))
	}
	return nil
}

// Index searches one published generation with Firestore vector search
type Index struct {
	embedder   interfaces.Embedder
	modelID    string
	count      int
	collection *firestore.CollectionRef
}

var _ interfaces.EmbeddingIndex = &Index{}

func (x *Index) Len() int {
	return x.count
}

func (x *Index) ModelID() string {
	return x.modelID
}

func (x *Index) Search(ctx context.Context, query string, k int) ([]*model.RetrievedDocument, error) {
	if k <= 0 {
		return nil, goerr.Wrap(model.ErrInvalidArgument, "k must be positive", goerr.V("k", k))
	}
	if got := x.embedder.ModelID(); got != x.modelID {
		return nil, goerr.Wrap(model.ErrEmbeddingModelMismatch, "query embedder differs from build embedder",
			goerr.V("index_model", x.modelID),
			goerr.V("query_model", got),
		)
	}
	if x.count == 0 {
		return []*model.RetrievedDocument{}, nil
	}

	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, goerr.Wrap(model.ErrEmbeddingService, "embedding generation returned empty result")
	}

	// Fetch the whole generation when it fits so that ties at the k-th
	// position are broken by ingestion order rather than by the backend.
	limit := min(x.count, maxNearestLimit)
	vq := x.collection.FindNearest(EmbeddingField, firestore.Vector32(vectors[0]), limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField},
	)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	var found []documentDoc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate vector search results")
		}

		var d documentDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document from vector search")
		}
		found = append(found, d)
	}

	// cosine distance is 1 - cosine similarity
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Distance != found[j].Distance {
			return found[i].Distance < found[j].Distance
		}
		return found[i].Seq < found[j].Seq
	})

	if k > len(found) {
		k = len(found)
	}

	out := make([]*model.RetrievedDocument, k)
	for i, d := range found[:k] {
		out[i] = &model.RetrievedDocument{
			Document: model.Document{
				ID:       model.DocumentID(d.ID),
				Content:  d.Content,
				Metadata: d.Metadata,
			},
			Score: 1 - d.Distance,
		}
	}
	return out, nil
}
