// Package supervisor implements the orchestration loop: a state machine that
// repeatedly asks the routing classifier which worker should act next, invokes
// that worker, and finally hands the accumulated conversation to the
// synthesizer. Workers never call each other or the classifier directly.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carelake/clinical-assistant/agent/agents/workers"
	contractx "github.com/carelake/clinical-assistant/agent/contract"
	statex "github.com/carelake/clinical-assistant/agent/state"
	"github.com/carelake/clinical-assistant/pkg/metrics"
)

// NodeSynthesize identifies the synthesis transition in emitted events; all
// other events carry the dispatched worker's name.
const NodeSynthesize = "synthesize"

const defaultMaxIterations = 3

type Config struct {
	// MaxIterations is the hard ceiling on routing decisions per run. Once a
	// decision would exceed it, the run finishes without a classification
	// call. This is an expected outcome, not a failure.
	MaxIterations int
}

// Event is emitted once per DISPATCH or SYNTHESIZE transition, carrying the
// message that transition appended.
type Event struct {
	Node    string            `json:"node"`
	Message contractx.Message `json:"message"`
}

// StreamEvent is one element of a streamed run. Err is only set on the
// terminal element of a failed run.
type StreamEvent struct {
	Event Event
	Err   error
}

type Supervisor struct {
	classifier  contractx.Classifier
	synthesizer contractx.Synthesizer
	registry    *workers.Registry

	maxIterations int
}

func New(
	classifier contractx.Classifier,
	synthesizer contractx.Synthesizer,
	registry *workers.Registry,
	cfg Config,
) (*Supervisor, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if synthesizer == nil {
		return nil, errors.New("synthesizer is required")
	}
	if registry == nil {
		return nil, errors.New("worker registry is required")
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	return &Supervisor{
		classifier:    classifier,
		synthesizer:   synthesizer,
		registry:      registry,
		maxIterations: maxIterations,
	}, nil
}

// Run drives one conversation to completion and returns the messages produced
// during the run, in emission order: one per worker dispatch plus the final
// synthesized answer.
func (s *Supervisor) Run(ctx context.Context, history []contractx.Message) ([]contractx.Message, error) {
	var out []contractx.Message
	err := s.run(ctx, history, func(ev Event) error {
		out = append(out, ev.Message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stream drives one conversation and delivers one event per transition on the
// returned channel, closing it when the run reaches DONE. A failed run ends
// with a terminal element whose Err is set; callers must drain the channel
// until it closes. Cancelling ctx stops the loop before its next transition
// and no further worker is invoked; the terminal element is then delivered
// best-effort so an abandoned consumer never parks the goroutine.
func (s *Supervisor) Stream(ctx context.Context, history []contractx.Message) <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		err := s.run(ctx, history, func(ev Event) error {
			select {
			case ch <- StreamEvent{Event: ev}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case ch <- StreamEvent{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

func (s *Supervisor) run(ctx context.Context, history []contractx.Message, emit func(Event) error) error {
	conv, err := statex.NewConversation(history)
	if err != nil {
		return err
	}

	runID := xid.New().String()
	logger := log.With().Str("run_id", runID).Logger()
	metrics.RunsStarted.Inc()

	fail := func(err error) error {
		metrics.RunsFailed.Inc()
		logger.Error().Err(err).Msg("conversation run failed")
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		decision, err := s.decide(ctx, conv, logger)
		if err != nil {
			return fail(err)
		}
		if decision.NextNode == contractx.RouteFinish {
			break
		}

		worker, ok := s.registry.Lookup(decision.NextNode)
		if !ok {
			// decide() already enforced the enum; a miss here is a bug.
			return fail(fmt.Errorf("%w: worker %q vanished from registry", contractx.ErrInvalidRoute, decision.NextNode))
		}

		msg, err := worker.Invoke(ctx, contractx.WorkerRequest{Messages: conv.History()})
		if err != nil {
			return fail(fmt.Errorf("%w: worker=%s: %v", contractx.ErrWorkerInvoke, decision.NextNode, err))
		}
		if strings.TrimSpace(msg.Content) == "" {
			return fail(fmt.Errorf("%w: worker=%s returned empty message", contractx.ErrWorkerInvoke, decision.NextNode))
		}
		msg.Role = contractx.RoleAssistant
		msg.Name = worker.Name()

		conv.Append(msg)
		conv.NextNode = decision.NextNode
		conv.IterationCount = decision.IterationCount

		metrics.WorkerDispatches.WithLabelValues(decision.NextNode).Inc()
		logger.Debug().
			Str("worker", decision.NextNode).
			Int("iteration", decision.IterationCount).
			Msg("worker dispatched")

		if err := emit(Event{Node: decision.NextNode, Message: msg}); err != nil {
			return fail(err)
		}
	}

	final, err := s.synthesizer.Synthesize(ctx, contractx.SynthesizeRequest{Messages: conv.History()})
	if err != nil {
		return fail(fmt.Errorf("%w: %v", contractx.ErrSynthesis, err))
	}
	final.Role = contractx.RoleAssistant
	final.Name = ""
	conv.Append(final)

	logger.Info().
		Int("iterations", conv.IterationCount).
		Int("messages", len(conv.Produced())).
		Msg("conversation run complete")

	return emit(Event{Node: NodeSynthesize, Message: final})
}

// decide implements one ROUTING step: the iteration ceiling, the
// classification call, and the consecutive-decision repeat check, in that
// order.
func (s *Supervisor) decide(ctx context.Context, conv *statex.Conversation, logger zerolog.Logger) (contractx.RouteDecision, error) {
	count := conv.IterationCount + 1
	if count > s.maxIterations {
		metrics.IterationBoundHits.Inc()
		logger.Info().
			Int("max_iterations", s.maxIterations).
			Msg("iteration bound reached, forcing finish")
		return contractx.RouteDecision{NextNode: contractx.RouteFinish, IterationCount: conv.IterationCount}, nil
	}

	next, err := s.classifier.Classify(ctx, contractx.ClassifyRequest{
		Workers:  s.registry.Infos(),
		Messages: conv.History(),
	})
	if err != nil {
		return contractx.RouteDecision{}, err
	}

	next = strings.TrimSpace(next)
	if next == contractx.RouteFinish {
		return contractx.RouteDecision{NextNode: contractx.RouteFinish, IterationCount: conv.IterationCount}, nil
	}
	if _, ok := s.registry.Lookup(next); !ok {
		return contractx.RouteDecision{}, fmt.Errorf("%w: got %q", contractx.ErrInvalidRoute, next)
	}
	if next == conv.NextNode {
		// Two identical decisions in a row make no progress; stop rather than
		// loop until the ceiling.
		metrics.RepeatFinishes.Inc()
		logger.Info().
			Str("worker", next).
			Msg("repeated routing decision, forcing finish")
		return contractx.RouteDecision{NextNode: contractx.RouteFinish, IterationCount: conv.IterationCount}, nil
	}

	return contractx.RouteDecision{NextNode: next, IterationCount: count}, nil
}
