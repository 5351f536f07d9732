package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Generator generates content, it is implemented by genai.Client.Models.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Expert answers questions with a model.
//
// A question is exactly one request: no history is kept between two Ask,
// and function calls are refused.
type Expert struct {
	Name      string
	ModelName string
	Config    *genai.GenerateContentConfig
	log       *zap.Logger
}

// Ask asks a question and returns the answer of the model.
func (e *Expert) Ask(ctx context.Context, gen Generator, parts ...*genai.Part) (*genai.Content, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := gen.GenerateContent(ctx, e.ModelName, contents, e.Config)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from expert %s", e.Name)
	}
	content := resp.Candidates[0].Content
	for _, p := range content.Parts {
		if p.FunctionCall != nil {
			return nil, fmt.Errorf("expert %s asked for function %s, functions are not supported", e.Name, p.FunctionCall.Name)
		}
	}
	return content, nil
}

func (e *Expert) logger() *zap.Logger {
	if e.log == nil {
		return zap.NewNop()
	}
	return e.log
}
