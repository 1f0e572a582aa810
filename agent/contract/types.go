package contract

type AgentType string

const (
	AgentTypeSupervisor  AgentType = "supervisor"
	AgentTypeSynthesizer AgentType = "synthesizer"
	AgentTypeGenie       AgentType = "genie"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// RouteFinish is the completion sentinel: the supervisor stops dispatching
// workers and hands the conversation to the synthesizer.
const RouteFinish = "FINISH"

// Message is one turn of dialogue. Name identifies the worker that produced
// an assistant turn; it is empty for user and system turns and for the final
// synthesized answer. Messages are immutable once created.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// WorkerInfo is the (name, capability description) pair advertised to the
// routing classifier.
type WorkerInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RouteDecision is the supervisor's verdict for one routing step.
type RouteDecision struct {
	NextNode       string `json:"next_node"`
	IterationCount int    `json:"iteration_count"`
}

type ClassifyRequest struct {
	Workers  []WorkerInfo `json:"workers"`
	Messages []Message    `json:"messages"`
}

type WorkerRequest struct {
	Messages []Message `json:"messages"`
}

type SynthesizeRequest struct {
	Messages []Message `json:"messages"`
}
