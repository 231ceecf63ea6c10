package retrieval

import (
	"context"
	"fmt"
	"time"
)

// Chunk is a stored document fragment. Score is set by similarity search.
type Chunk struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Filename  string    `json:"filename"`
	Index     int       `json:"chunk_index"`
	Text      string    `json:"text"`
	Score     float32   `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Record is a chunk together with its embedding, as written to a Store.
type Record struct {
	Chunk
	Embedding []float32
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Store interface {
	Insert(ctx context.Context, records []Record) error
	Search(ctx context.Context, vector []float32, topK int) ([]Chunk, error)
	Count(ctx context.Context) (int, error)
	DeleteSource(ctx context.Context, source string) (int64, error)
}

// Retriever combines embedding and vector search to find relevant chunks.
type Retriever struct {
	embedder Embedder
	store    Store
}

func NewRetriever(embedder Embedder, store Store) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

func (r *Retriever) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// QuerySimilar returns up to topK chunks ordered by descending similarity.
func (r *Retriever) QuerySimilar(ctx context.Context, vector []float32, topK int) ([]Chunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	return r.store.Search(ctx, vector, topK)
}

func (r *Retriever) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}
