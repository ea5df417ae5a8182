package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CompletionRequest is a single-turn text generation request.
type CompletionRequest struct {
	Model       string
	System      string
	CacheSystem bool
	Prompt      string
	MaxTokens   int64
	Temperature float64
	// Stage labels cost attribution log lines, e.g. "query" or "extract".
	Stage string
}

// Completion is the text and usage returned by a generation call.
type Completion struct {
	Text       string
	Model      string
	StopReason string
	Usage      TokenUsage
}

// Generator turns single-turn prompts into text completions.
type Generator struct {
	client Client
}

// NewGenerator creates a Generator over client.
func NewGenerator(client Client) *Generator {
	return &Generator{client: client}
}

// Complete sends one user prompt and returns the concatenated text reply.
func (g *Generator) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	temp := req.Temperature
	mr := MessageRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Messages:    []Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}
	if req.System != "" {
		if req.CacheSystem {
			mr.System = BuildCachedSystemBlocks(req.System)
		} else {
			mr.System = []SystemBlock{{Text: req.System}}
		}
	}

	resp, err := g.client.CreateMessage(ctx, mr)
	if err != nil {
		return nil, eris.Wrapf(err, "anthropic: complete %s", req.Stage)
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("stage", req.Stage),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
		zap.Int64("cache_write_tokens", resp.Usage.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", resp.Usage.CacheReadInputTokens),
	)

	return &Completion{
		Text:       resp.Text(),
		Model:      model,
		StopReason: resp.StopReason,
		Usage:      resp.Usage,
	}, nil
}
