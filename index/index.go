// Package index maintains the vector index over the clinical coding reference
// library. Documents are embedded through the serving endpoint and stored in
// chromem; the retrieval worker answers questions by similarity search here.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	chromem "github.com/philippgille/chromem-go"
)

type Config struct {
	Path       string `envconfig:"PATH" split_words:"true"`
	Collection string `envconfig:"COLLECTION" split_words:"true" default:"coding-reference"`
	TopK       int    `envconfig:"TOP_K" split_words:"true" default:"4"`
}

// Document is one reference passage to index.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Hit is one similarity-search result.
type Hit struct {
	ID         string
	Content    string
	Similarity float32
	Metadata   map[string]string
}

type Index struct {
	collection *chromem.Collection
	topK       int
}

// New opens (or creates) the index. An empty Path keeps the index in memory,
// which the tests rely on.
func New(cfg Config, embed chromem.EmbeddingFunc) (*Index, error) {
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, errors.New("index collection name is required")
	}
	if embed == nil {
		return nil, errors.New("embedding function is required")
	}

	var (
		db  *chromem.DB
		err error
	)
	if strings.TrimSpace(cfg.Path) == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("open index at %s: %w", cfg.Path, err)
		}
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", cfg.Collection, err)
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 4
	}

	return &Index{collection: collection, topK: topK}, nil
}

// Add embeds and stores documents. Documents without an ID or content are
// rejected rather than silently skipped.
func (i *Index) Add(ctx context.Context, docs ...Document) error {
	for _, d := range docs {
		if strings.TrimSpace(d.ID) == "" {
			return errors.New("document id is required")
		}
		if strings.TrimSpace(d.Content) == "" {
			return fmt.Errorf("document %s has no content", d.ID)
		}
		err := i.collection.AddDocument(ctx, chromem.Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
		})
		if err != nil {
			return fmt.Errorf("index document %s: %w", d.ID, err)
		}
	}
	return nil
}

// Search returns up to topK passages most similar to the query. chromem caps
// the result count at the collection size.
func (i *Index) Search(ctx context.Context, query string) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is empty")
	}

	n := i.topK
	if count := i.collection.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := i.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:         r.ID,
			Content:    r.Content,
			Similarity: r.Similarity,
			Metadata:   r.Metadata,
		})
	}
	return hits, nil
}

// OpenAIEmbedding adapts the serving endpoint's embedding API to chromem.
func OpenAIEmbedding(client *openaisdk.Client, model string) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
			Input: openaisdk.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: []string{text},
			},
			Model: openaisdk.EmbeddingModel(model),
		})
		if err != nil {
			return nil, fmt.Errorf("embed text: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, errors.New("embedding response is empty")
		}
		raw := resp.Data[0].Embedding
		out := make([]float32, len(raw))
		for i, v := range raw {
			out[i] = float32(v)
		}
		return out, nil
	}
}
