package workers

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/carelake/clinical-assistant/agent/contract"
	indexx "github.com/carelake/clinical-assistant/index"
)

const (
	// RetrieverName is the registered identifier of the document-retrieval agent.
	RetrieverName        = "Retriever"
	retrieverDescription = "Looks up clinical coding guidelines, definitions and documentation rules by similarity search over the reference library."
)

// Searcher is the slice of the document index the retriever needs.
type Searcher interface {
	Search(ctx context.Context, query string) ([]indexx.Hit, error)
}

// Retriever resolves questions by similarity search over the reference
// library and reports the matching passages as one assistant message.
type Retriever struct {
	searcher Searcher
}

var _ contractx.Worker = (*Retriever)(nil)

func NewRetriever(searcher Searcher) (*Retriever, error) {
	if searcher == nil {
		return nil, fmt.Errorf("%w: retriever requires a document index", contractx.ErrValidation)
	}
	return &Retriever{searcher: searcher}, nil
}

func (r *Retriever) Name() string        { return RetrieverName }
func (r *Retriever) Description() string { return retrieverDescription }

func (r *Retriever) Invoke(ctx context.Context, req contractx.WorkerRequest) (contractx.Message, error) {
	question, err := lastUserQuestion(req.Messages)
	if err != nil {
		return contractx.Message{}, err
	}

	hits, err := r.searcher.Search(ctx, question)
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: search reference library: %v", contractx.ErrModelInvoke, err)
	}

	return contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: renderHits(hits),
		Name:    RetrieverName,
	}, nil
}

func renderHits(hits []indexx.Hit) string {
	if len(hits) == 0 {
		return "No matching passages in the reference library."
	}
	var b strings.Builder
	b.WriteString("Reference passages:\n")
	for i, h := range hits {
		source := h.Metadata["source"]
		if source == "" {
			source = h.ID
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, source, strings.TrimSpace(h.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}
