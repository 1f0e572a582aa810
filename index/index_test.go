package index

import (
	"context"
	"hash/fnv"
	"testing"
)

// stubEmbedding maps text to a deterministic unit-ish vector so similarity
// search is stable without a serving endpoint.
func stubEmbedding() func(ctx context.Context, text string) ([]float32, error) {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, 8)
		h := fnv.New32a()
		for i, word := range splitWords(text) {
			h.Reset()
			_, _ = h.Write([]byte(word))
			vec[(int(h.Sum32())+i)%len(vec)] += 1
		}
		return vec, nil
	}
}

func splitWords(s string) []string {
	var words []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\n' {
			if start >= 0 {
				words = append(words, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, s[start:])
	}
	return words
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New(Config{Collection: "test", TopK: 2}, stubEmbedding())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return idx
}

func TestAddRejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Add(ctx, Document{ID: "", Content: "x"}); err == nil {
		t.Fatal("expected error for missing id")
	}
	if err := idx.Add(ctx, Document{ID: "d1", Content: "  "}); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestSearchEmptyIndexReturnsNoHits(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	hits, err := idx.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestSearchFindsIndexedDocument(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	ctx := context.Background()

	err := idx.Add(ctx,
		Document{ID: "icd-atrial", Content: "atrial fibrillation coding guidance", Metadata: map[string]string{"source": "icd"}},
		Document{ID: "icd-sepsis", Content: "sepsis severity coding rules"},
		Document{ID: "icd-fracture", Content: "fracture laterality documentation"},
	)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	hits, err := idx.Search(ctx, "atrial fibrillation coding guidance")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected topK=2 hits, got %d", len(hits))
	}
	if hits[0].ID != "icd-atrial" {
		t.Fatalf("expected icd-atrial first, got %s", hits[0].ID)
	}
	if hits[0].Metadata["source"] != "icd" {
		t.Fatalf("metadata lost: %+v", hits[0].Metadata)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	idx := newTestIndex(t)
	if _, err := idx.Search(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty query")
	}
}
