package workers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/uptrace/bun"

	contractx "github.com/carelake/clinical-assistant/agent/contract"
)

const (
	// GenieName is the registered identifier of the structured-data agent.
	GenieName        = "Genie"
	genieDescription = "Answers questions that need counts, lists or field values from the curated HL7 tables (patients, encounters, observations, allergies) by running a SQL query."

	genieRowLimit = 50
)

type genieLLMOutput struct {
	Query string `json:"query"`
}

// Genie resolves questions against the curated HL7 record store: it plans a
// single SELECT through the serving endpoint, executes it, and reports the
// result rows as one assistant message.
type Genie struct {
	db     bun.IDB
	runner compose.Runnable[map[string]any, genieLLMOutput]
}

var _ contractx.Worker = (*Genie)(nil)

func NewGenie(ctx context.Context, chatModel einomodel.BaseChatModel, db bun.IDB, systemPrompt string) (*Genie, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: genie requires a record store", contractx.ErrValidation)
	}

	runner, err := compileGenieGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile genie graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Genie{db: db, runner: runner}, nil
}

func (g *Genie) Name() string        { return GenieName }
func (g *Genie) Description() string { return genieDescription }

func (g *Genie) Invoke(ctx context.Context, req contractx.WorkerRequest) (contractx.Message, error) {
	if _, err := lastUserQuestion(req.Messages); err != nil {
		return contractx.Message{}, err
	}

	payload, err := json.Marshal(req.Messages)
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: marshal genie payload: %v", contractx.ErrValidation, err)
	}

	out, err := g.runner.Invoke(ctx, map[string]any{
		"input": string(payload),
	})
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: genie plan invoke: %v", contractx.ErrModelInvoke, err)
	}

	query, err := validateQuery(out.Query)
	if err != nil {
		return contractx.Message{}, err
	}

	table, err := g.execute(ctx, query)
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: execute genie query: %v", contractx.ErrModelInvoke, err)
	}

	content := fmt.Sprintf("Query:\n%s\n\nResult:\n%s", query, table)
	return contractx.Message{
		Role:    contractx.RoleAssistant,
		Content: content,
		Name:    GenieName,
	}, nil
}

func (g *Genie) execute(ctx context.Context, query string) (string, error) {
	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var data [][]string
	for rows.Next() {
		if len(data) >= genieRowLimit {
			break
		}
		raw := make([]sql.RawBytes, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return "", err
		}
		row := make([]string, len(cols))
		for i, b := range raw {
			if b == nil {
				row[i] = "NULL"
				continue
			}
			row[i] = string(b)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	return renderTable(cols, data), nil
}

// validateQuery enforces the read-only contract: exactly one SELECT (or
// WITH ... SELECT) statement, no statement chaining.
func validateQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("%w: genie returned an empty query", contractx.ErrSchemaViolation)
	}
	if strings.Contains(q, ";") {
		return "", fmt.Errorf("%w: genie query chains statements", contractx.ErrSchemaViolation)
	}
	head := strings.ToLower(q)
	if !strings.HasPrefix(head, "select") && !strings.HasPrefix(head, "with") {
		return "", fmt.Errorf("%w: genie query is not a SELECT", contractx.ErrSchemaViolation)
	}
	return q, nil
}

func renderTable(cols []string, rows [][]string) string {
	if len(rows) == 0 {
		return "no rows matched"
	}
	var b strings.Builder
	b.WriteString(strings.Join(cols, " | "))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func lastUserQuestion(messages []contractx.Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == contractx.RoleUser && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content, nil
		}
	}
	return "", fmt.Errorf("%w: no user question in history", contractx.ErrValidation)
}

func compileGenieGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, genieLLMOutput], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[genieLLMOutput](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, genieLLMOutput]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add genie prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add genie model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add genie parser node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add genie edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add genie edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse_json"); err != nil {
		return nil, fmt.Errorf("add genie edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add genie edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("genie.query_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile genie graph: %w", err)
	}
	return runner, nil
}
