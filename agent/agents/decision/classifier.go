// Package decision holds the model-backed calls the supervisor loop depends
// on: the routing classification service and the final answer synthesizer.
// The loop itself never talks to a model directly.
package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/carelake/clinical-assistant/agent/contract"
)

type classifierImpl struct {
	runner compose.Runnable[map[string]any, routeLLMOutput]
}

type routeLLMOutput struct {
	Next string `json:"next"`
}

var _ contractx.Classifier = (*classifierImpl)(nil)

func newClassifier(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*classifierImpl, error) {
	runner, err := compileStructuredLLMGraph[routeLLMOutput](ctx, chatModel, systemPrompt, "supervisor.route_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile route graph: %v", contractx.ErrModelInvoke, err)
	}
	return &classifierImpl{runner: runner}, nil
}

// Classify submits the worker roster and full history to the serving endpoint
// and returns the raw decided value. Enum enforcement belongs to the
// supervisor, which owns the registry.
func (c *classifierImpl) Classify(ctx context.Context, req contractx.ClassifyRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("%w: classify requires message history", contractx.ErrValidation)
	}

	payload, err := json.Marshal(req.Messages)
	if err != nil {
		return "", fmt.Errorf("%w: marshal classify payload: %v", contractx.ErrValidation, err)
	}

	out, err := c.runner.Invoke(ctx, map[string]any{
		"workers": renderRoster(req.Workers),
		"input":   string(payload),
	})
	if err != nil {
		return "", fmt.Errorf("%w: classify invoke: %v", contractx.ErrRoutingUnavailable, err)
	}

	return strings.TrimSpace(out.Next), nil
}

func renderRoster(workers []contractx.WorkerInfo) string {
	var b strings.Builder
	for _, w := range workers {
		fmt.Fprintf(&b, "- %s: %s\n", w.Name, w.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
