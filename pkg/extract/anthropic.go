package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 1024
	extractToolName  = "record_extraction"
)

const systemPrompt = `You read one group-chat reply plus the thread it belongs to and extract structured record changes.
Identify the work identifier the conversation is about (an explicit id like WO-12345, or a stable fallback such as a street address when no id appears).
Report the fields the reply changes and their new values. Only report values the reply actually states; never invent fields.`

// Anthropic is the LLM-backed extractor. It forces a single tool call
// so the model's output is schema-shaped JSON rather than prose.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic builds an extractor using the given API key and model.
// Empty model or maxTokens fall back to package defaults.
func NewAnthropic(apiKey, model string, maxTokens int64) (*Anthropic, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing anthropic api key")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Anthropic{
		client:    anthropic.NewClient(aoption.WithAPIKey(strings.TrimSpace(apiKey))),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}, nil
}

func extractionTool() anthropic.ToolUnionParam {
	param := anthropic.ToolParam{
		Name:        extractToolName,
		Description: anthropic.String("Report the work identifier and changed fields extracted from a chat reply."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type: "object",
			Properties: map[string]any{
				"identifier_found": map[string]any{"type": "boolean"},
				"identifier":       map[string]any{"type": "string"},
				"changed_fields": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"new_values": map[string]any{
					"type":                 "object",
					"additionalProperties": true,
				},
				"new_record": map[string]any{"type": "boolean"},
			},
			Required: []string{"identifier_found"},
		},
	}
	return anthropic.ToolUnionParam{OfTool: &param}
}

func (a *Anthropic) Extract(ctx context.Context, threadText, replyText string) (Result, error) {
	var res Result
	user := "Thread so far:\n" + threadText + "\n\nCurrent reply:\n" + replyText
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Tools: []anthropic.ToolUnionParam{extractionTool()},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: extractToolName},
		},
	}
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return res, fmt.Errorf("extraction call failed: %w", err)
	}
	for _, block := range msg.Content {
		tu, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok || tu.Name != extractToolName {
			continue
		}
		if err := json.Unmarshal(tu.Input, &res); err != nil {
			return res, fmt.Errorf("extraction output decode failed: %w", err)
		}
		res.Identifier = strings.TrimSpace(res.Identifier)
		if res.Identifier == "" {
			res.IdentifierFound = false
		}
		return res, nil
	}
	return res, fmt.Errorf("extraction returned no tool output")
}
