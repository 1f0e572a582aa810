package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/carelake/clinical-assistant/agent/contract"
	servingx "github.com/carelake/clinical-assistant/pkg/modelserving"
)

// Config selects serving endpoints per agent role. The base Model applies
// everywhere unless a role-specific override is set.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.1"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL" split_words:"true" default:"text-embedding-3-small"`

	SupervisorModel        string  `envconfig:"SUPERVISOR_MODEL" split_words:"true"`
	SynthesizerModel       string  `envconfig:"SYNTHESIZER_MODEL" split_words:"true"`
	GenieModel             string  `envconfig:"GENIE_MODEL" split_words:"true"`
	SupervisorTemperature  float32 `envconfig:"SUPERVISOR_TEMPERATURE" split_words:"true" default:"-1"`
	SynthesizerTemperature float32 `envconfig:"SYNTHESIZER_TEMPERATURE" split_words:"true" default:"-1"`
	GenieTemperature       float32 `envconfig:"GENIE_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: serving api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// ServingFor resolves the effective endpoint settings for one agent role.
func (c Config) ServingFor(agentType contractx.AgentType) servingx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch agentType {
	case contractx.AgentTypeSupervisor:
		if v := strings.TrimSpace(c.SupervisorModel); v != "" {
			modelName = v
		}
		if c.SupervisorTemperature >= 0 {
			temp = c.SupervisorTemperature
		}
	case contractx.AgentTypeSynthesizer:
		if v := strings.TrimSpace(c.SynthesizerModel); v != "" {
			modelName = v
		}
		if c.SynthesizerTemperature >= 0 {
			temp = c.SynthesizerTemperature
		}
	case contractx.AgentTypeGenie:
		if v := strings.TrimSpace(c.GenieModel); v != "" {
			modelName = v
		}
		if c.GenieTemperature >= 0 {
			temp = c.GenieTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return servingx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
	}
}
