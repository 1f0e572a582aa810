package decision

import (
	"context"
	"fmt"

	contractx "github.com/carelake/clinical-assistant/agent/contract"
	llmx "github.com/carelake/clinical-assistant/agent/llm"
	promptx "github.com/carelake/clinical-assistant/agent/prompt"
)

// NewServices builds the classifier and synthesizer against the configured
// serving endpoints. Both are immutable after construction.
func NewServices(ctx context.Context, cfg llmx.Config) (contractx.Classifier, contractx.Synthesizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	prompts := promptx.LoadPromptSet()

	supervisorCfg := cfg.ServingFor(contractx.AgentTypeSupervisor)
	supervisorModel, err := supervisorCfg.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create supervisor model: %v", contractx.ErrModelInvoke, err)
	}
	synthesizerCfg := cfg.ServingFor(contractx.AgentTypeSynthesizer)
	synthesizerModel, err := synthesizerCfg.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create synthesizer model: %v", contractx.ErrModelInvoke, err)
	}

	classifier, err := newClassifier(ctx, supervisorModel, prompts.Supervisor)
	if err != nil {
		return nil, nil, err
	}
	synthesizer, err := newSynthesizer(ctx, synthesizerModel, prompts.Synthesizer)
	if err != nil {
		return nil, nil, err
	}

	return classifier, synthesizer, nil
}
