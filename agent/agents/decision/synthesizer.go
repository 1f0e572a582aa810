package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/carelake/clinical-assistant/agent/contract"
)

// synthesisInstruction is the fixed user turn appended to a private copy of
// the history before the terminal model call.
const synthesisInstruction = "Answer the original question using only the prior assistant messages above."

type synthesizerImpl struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Synthesizer = (*synthesizerImpl)(nil)

func newSynthesizer(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*synthesizerImpl, error) {
	runner, err := compileChatGraph(ctx, chatModel, systemPrompt, "synthesizer.answer_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile synthesis graph: %v", contractx.ErrModelInvoke, err)
	}
	return &synthesizerImpl{runner: runner}, nil
}

func (s *synthesizerImpl) Synthesize(ctx context.Context, req contractx.SynthesizeRequest) (contractx.Message, error) {
	if len(req.Messages) == 0 {
		return contractx.Message{}, fmt.Errorf("%w: synthesize requires message history", contractx.ErrValidation)
	}

	augmented := make([]contractx.Message, 0, len(req.Messages)+1)
	augmented = append(augmented, req.Messages...)
	augmented = append(augmented, contractx.Message{
		Role:    contractx.RoleUser,
		Content: synthesisInstruction,
	})

	payload, err := json.Marshal(augmented)
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: marshal synthesis payload: %v", contractx.ErrValidation, err)
	}

	msg, err := s.runner.Invoke(ctx, map[string]any{
		"input": string(payload),
	})
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: synthesis invoke: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return contractx.Message{}, fmt.Errorf("%w: synthesis returned empty answer", contractx.ErrSchemaViolation)
	}

	// The final answer speaks with the system's own voice: no worker tag.
	return contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: strings.TrimSpace(msg.Content),
	}, nil
}
