package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type IngesterConfig struct {
	Logger      *slog.Logger
	Clock       clockwork.Clock
	Embedder    Embedder
	Store       Store
	ChunkSize   int
	Overlap     int
	Concurrency int
}

func (cfg *IngesterConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Embedder == nil {
		return errors.New("embedder is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = DefaultChunkOverlap
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return nil
}

type IngestStats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Replaced  int `json:"replaced"`
}

// Ingester loads documents, chunks and embeds them, and replaces each
// document's previous chunks in the store.
type Ingester struct {
	log  *slog.Logger
	cfg  IngesterConfig
	pool pond.ResultPool[Record]
}

func NewIngester(cfg IngesterConfig) (*Ingester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate ingester config: %w", err)
	}
	return &Ingester{
		log:  cfg.Logger,
		cfg:  cfg,
		pool: pond.NewResultPool[Record](cfg.Concurrency),
	}, nil
}

func (i *Ingester) Close() {
	i.pool.StopAndWait()
}

func (i *Ingester) Ingest(ctx context.Context, src DocumentSource) (IngestStats, error) {
	docs, err := src.Documents(ctx)
	if err != nil {
		return IngestStats{}, err
	}
	i.log.Info("ingest: loaded documents", "source", src.Name(), "count", len(docs))

	var stats IngestStats
	for _, doc := range docs {
		records, err := i.embedDocument(ctx, doc)
		if err != nil {
			return stats, err
		}
		removed, err := i.cfg.Store.DeleteSource(ctx, doc.Source)
		if err != nil {
			return stats, err
		}
		if err := i.cfg.Store.Insert(ctx, records); err != nil {
			return stats, fmt.Errorf("failed to store chunks for %s: %w", doc.Source, err)
		}
		stats.Documents++
		stats.Chunks += len(records)
		stats.Replaced += int(removed)
	}

	i.log.Info("ingest: complete", "source", src.Name(), "documents", stats.Documents, "chunks", stats.Chunks, "replaced", stats.Replaced)
	return stats, nil
}

func (i *Ingester) embedDocument(ctx context.Context, doc Document) ([]Record, error) {
	texts := ChunkText(doc.Content, i.cfg.ChunkSize, i.cfg.Overlap)
	if len(texts) == 0 {
		return nil, nil
	}
	now := i.cfg.Clock.Now().UTC()

	group := i.pool.NewGroupContext(ctx)
	for idx, text := range texts {
		group.SubmitErr(func() (Record, error) {
			vec, err := i.cfg.Embedder.Embed(ctx, text)
			if err != nil {
				return Record{}, fmt.Errorf("chunk %d: %w", idx, err)
			}
			return Record{
				Chunk: Chunk{
					ID:        uuid.NewString(),
					Source:    doc.Source,
					Filename:  doc.Filename,
					Index:     idx,
					Text:      text,
					CreatedAt: now,
				},
				Embedding: vec,
			}, nil
		})
	}
	records, err := group.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", doc.Source, err)
	}
	return records, nil
}
