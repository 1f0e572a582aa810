package contract

import "context"

// Classifier is the external routing decision service. It must return exactly
// one registered worker name or RouteFinish; anything else violates the
// contract and fails the run.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (string, error)
}

// Worker is a named capability unit. Invoke receives the full conversation
// history and returns exactly one assistant message tagged with the worker's
// name. Workers never touch routing bookkeeping.
type Worker interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, req WorkerRequest) (Message, error)
}

// Synthesizer produces the single terminal, user-facing answer from the
// accumulated worker output.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) (Message, error)
}
