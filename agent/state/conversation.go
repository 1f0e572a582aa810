package state

import (
	"errors"
	"fmt"

	contractx "github.com/carelake/clinical-assistant/agent/contract"
)

var (
	ErrEmptyHistory = errors.New("conversation history is empty")
	ErrNoUserTurn   = errors.New("conversation history has no user turn")
)

// Conversation is the unit of work for one end-to-end request: the append-only
// message history plus the routing bookkeeping owned by the supervisor.
// A fresh Conversation is created per inbound request and discarded once the
// synthesized answer has been returned; nothing is shared across runs.
type Conversation struct {
	Messages       []contractx.Message
	NextNode       string
	IterationCount int

	seeded int
}

// NewConversation seeds a run from the caller-supplied history. The history is
// copied so the caller's slice is never aliased. At least one user turn is
// required.
func NewConversation(history []contractx.Message) (*Conversation, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, ErrEmptyHistory)
	}
	hasUser := false
	for _, m := range history {
		if m.Role == contractx.RoleUser {
			hasUser = true
			break
		}
	}
	if !hasUser {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, ErrNoUserTurn)
	}

	msgs := make([]contractx.Message, len(history))
	copy(msgs, history)
	return &Conversation{
		Messages: msgs,
		seeded:   len(msgs),
	}, nil
}

// Append adds one message to the history. Messages are never removed or
// reordered.
func (c *Conversation) Append(msg contractx.Message) {
	c.Messages = append(c.Messages, msg)
}

// History returns a copy of the full message sequence for read-only consumers.
func (c *Conversation) History() []contractx.Message {
	out := make([]contractx.Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// Produced returns the messages appended during this run, in emission order:
// one per worker dispatch plus the final synthesized answer.
func (c *Conversation) Produced() []contractx.Message {
	out := make([]contractx.Message, len(c.Messages)-c.seeded)
	copy(out, c.Messages[c.seeded:])
	return out
}
