package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/etnz/tradebook/resolver"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// script is a Generator replaying canned responses.
type script struct {
	responses []*genai.Content
	requests  [][]*genai.Content
}

func (s *script) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.requests = append(s.requests, contents)
	if len(s.responses) == 0 {
		return nil, errors.New("no more responses")
	}
	c := s.responses[0]
	s.responses = s.responses[1:]
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: c}}}, nil
}

func text(s string) *genai.Content {
	return &genai.Content{Role: "model", Parts: []*genai.Part{{Text: s}}}
}

type provider struct{ candidates []resolver.Candidate }

func (p provider) Search(context.Context, string) ([]resolver.Candidate, error) {
	return p.candidates, nil
}

func (p provider) Quotes(context.Context, []string) (map[string]decimal.Decimal, error) {
	return nil, nil
}

func TestInferrer_Infer(t *testing.T) {
	tests := []struct {
		answer  string
		want    string
		wantErr error
	}{
		{"AAPL", "AAPL", nil},
		{"`BRK.B`\n", "BRK.B", nil},
		{" \"GOOGL\" ", "GOOGL", nil},
		{"UNKNOWN", "", ErrUnknown},
		{"i am not sure", "", ErrUnknown},
		{"The ticker is MSFT.", "", ErrUnknown},
		{"I don't know", "", ErrUnknown},
		{"I believe it is AAPL", "", ErrUnknown},
		{"N/A", "", ErrUnknown},
		{"", "", ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			gen := &script{responses: []*genai.Content{text(tt.answer)}}
			got, err := New(gen).Infer(context.Background(), "037833100")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Infer() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Infer() = %q, want %q", got, tt.want)
			}
			if len(gen.requests) != 1 {
				t.Errorf("%d requests, want 1", len(gen.requests))
			}
		})
	}
}

func TestInferrer_WithSearch(t *testing.T) {
	gen := &script{responses: []*genai.Content{text("TSLA")}}
	p := provider{candidates: []resolver.Candidate{{Ticker: "TSLA", Exchange: "US", Name: "Tesla Inc"}}}

	got, err := New(gen, WithSearch(p)).Infer(context.Background(), "88160R101")
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if got != "TSLA" {
		t.Errorf("Infer() = %q, want TSLA", got)
	}
	if len(gen.requests) != 1 {
		t.Fatalf("%d requests, want 1", len(gen.requests))
	}
	var prompt strings.Builder
	for _, p := range gen.requests[0][0].Parts {
		prompt.WriteString(p.Text)
	}
	if !strings.Contains(prompt.String(), "TSLA (US) Tesla Inc") {
		t.Errorf("prompt = %q, want the candidate listed", prompt.String())
	}
}

func TestInferrer_FunctionCallRefused(t *testing.T) {
	call := &genai.Content{Role: "model", Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{Name: "search_security"}}}}
	gen := &script{responses: []*genai.Content{call, text("TSLA")}}

	if _, err := New(gen).Infer(context.Background(), "88160R101"); err == nil {
		t.Errorf("Infer() succeeded, want an error on a function call")
	}
	if len(gen.requests) != 1 {
		t.Errorf("%d requests, want 1", len(gen.requests))
	}
}
