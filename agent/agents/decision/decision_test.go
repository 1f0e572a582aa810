package decision

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/carelake/clinical-assistant/agent/contract"
)

type fakeChatModel struct {
	responses []*schema.Message
	err       error
	idx       int
	inputs    [][]*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeChatModel) WithTools([]*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func assistantReply(content string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: content}
}

func classifyRequest() contractx.ClassifyRequest {
	return contractx.ClassifyRequest{
		Workers: []contractx.WorkerInfo{
			{Name: "Genie", Description: "structured data"},
			{Name: "Retriever", Description: "documents"},
		},
		Messages: []contractx.Message{
			{Role: contractx.RoleUser, Content: "how many admissions?"},
		},
	}
}

func TestClassifyTrimsDecision(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{
		assistantReply(`{"next": " Genie "}`),
	}}
	c, err := newClassifier(context.Background(), fake, "route using:\n{workers}")
	if err != nil {
		t.Fatalf("newClassifier() error = %v", err)
	}

	next, err := c.Classify(context.Background(), classifyRequest())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if next != "Genie" {
		t.Fatalf("decision not trimmed: %q", next)
	}
}

func TestClassifySeesRosterAndHistory(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{
		assistantReply(`{"next": "FINISH"}`),
	}}
	c, err := newClassifier(context.Background(), fake, "route using:\n{workers}")
	if err != nil {
		t.Fatalf("newClassifier() error = %v", err)
	}

	if _, err := c.Classify(context.Background(), classifyRequest()); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if len(fake.inputs) != 1 {
		t.Fatalf("expected one model call, got %d", len(fake.inputs))
	}
	rendered := fake.inputs[0]
	if len(rendered) != 2 || rendered[0].Role != schema.System {
		t.Fatalf("unexpected prompt shape: %+v", rendered)
	}
	if !strings.Contains(rendered[0].Content, "Genie: structured data") ||
		!strings.Contains(rendered[0].Content, "Retriever: documents") {
		t.Fatalf("roster missing from system prompt:\n%s", rendered[0].Content)
	}
	if !strings.Contains(rendered[1].Content, "how many admissions?") {
		t.Fatalf("history missing from payload:\n%s", rendered[1].Content)
	}
}

func TestClassifyModelFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{err: errors.New("endpoint 503")}
	c, err := newClassifier(context.Background(), fake, "route using:\n{workers}")
	if err != nil {
		t.Fatalf("newClassifier() error = %v", err)
	}

	_, err = c.Classify(context.Background(), classifyRequest())
	if !errors.Is(err, contractx.ErrRoutingUnavailable) {
		t.Fatalf("expected ErrRoutingUnavailable, got %v", err)
	}
}

func TestClassifyMalformedReply(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{
		assistantReply("Genie, probably"),
	}}
	c, err := newClassifier(context.Background(), fake, "route using:\n{workers}")
	if err != nil {
		t.Fatalf("newClassifier() error = %v", err)
	}

	_, err = c.Classify(context.Background(), classifyRequest())
	if !errors.Is(err, contractx.ErrRoutingUnavailable) {
		t.Fatalf("expected ErrRoutingUnavailable for unparsable reply, got %v", err)
	}
}

func TestClassifyRequiresHistory(t *testing.T) {
	t.Parallel()

	c, err := newClassifier(context.Background(), &fakeChatModel{}, "route using:\n{workers}")
	if err != nil {
		t.Fatalf("newClassifier() error = %v", err)
	}

	_, err = c.Classify(context.Background(), contractx.ClassifyRequest{})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSynthesizeAppendsInstructionToPrivateCopy(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{
		assistantReply("  the combined answer  "),
	}}
	s, err := newSynthesizer(context.Background(), fake, "synthesizer prompt")
	if err != nil {
		t.Fatalf("newSynthesizer() error = %v", err)
	}

	history := []contractx.Message{
		{Role: contractx.RoleUser, Content: "how many admissions?"},
		{Role: contractx.RoleAssistant, Content: "Query:\n...\n\nResult:\n42", Name: "Genie"},
	}
	msg, err := s.Synthesize(context.Background(), contractx.SynthesizeRequest{Messages: history})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if msg.Content != "the combined answer" || msg.Name != "" || msg.Role != contractx.RoleAssistant {
		t.Fatalf("unexpected final message: %+v", msg)
	}

	// The instruction lands exactly once in the payload the model sees and the
	// caller's slice stays untouched.
	rendered := fake.inputs[0]
	var payload []contractx.Message
	if err := json.Unmarshal([]byte(rendered[len(rendered)-1].Content), &payload); err != nil {
		t.Fatalf("decode synthesis payload: %v", err)
	}
	if len(payload) != len(history)+1 {
		t.Fatalf("expected %d payload messages, got %d", len(history)+1, len(payload))
	}
	last := payload[len(payload)-1]
	if last.Role != contractx.RoleUser || last.Content != synthesisInstruction {
		t.Fatalf("instruction not appended as user turn: %+v", last)
	}
	if n := strings.Count(rendered[len(rendered)-1].Content, synthesisInstruction); n != 1 {
		t.Fatalf("instruction must appear exactly once, found %d", n)
	}
	if len(history) != 2 || history[1].Content != "Query:\n...\n\nResult:\n42" {
		t.Fatalf("caller history mutated: %+v", history)
	}
}

func TestSynthesizeEmptyReply(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{
		assistantReply("   "),
	}}
	s, err := newSynthesizer(context.Background(), fake, "synthesizer prompt")
	if err != nil {
		t.Fatalf("newSynthesizer() error = %v", err)
	}

	_, err = s.Synthesize(context.Background(), contractx.SynthesizeRequest{
		Messages: []contractx.Message{{Role: contractx.RoleUser, Content: "q"}},
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestSynthesizeModelFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{err: errors.New("model overloaded")}
	s, err := newSynthesizer(context.Background(), fake, "synthesizer prompt")
	if err != nil {
		t.Fatalf("newSynthesizer() error = %v", err)
	}

	_, err = s.Synthesize(context.Background(), contractx.SynthesizeRequest{
		Messages: []contractx.Message{{Role: contractx.RoleUser, Content: "q"}},
	})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

func TestSynthesizeRequiresHistory(t *testing.T) {
	t.Parallel()

	s, err := newSynthesizer(context.Background(), &fakeChatModel{}, "synthesizer prompt")
	if err != nil {
		t.Fatalf("newSynthesizer() error = %v", err)
	}

	_, err = s.Synthesize(context.Background(), contractx.SynthesizeRequest{})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
