// Package agent infers ticker symbols from security identifiers with a
// Gemini model.
//
// It is the last resort of the resolver: the answers are unverified.
package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/etnz/tradebook/resolver"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is the model used unless WithModel.
const DefaultModel = "gemini-2.5-flash"

// ErrUnknown is returned when the model does not know the identifier.
var ErrUnknown = errors.New("identifier unknown to the model")

const instruction = `
You map US security identifiers (CUSIP) to their current US ticker symbol.

Answer with the ticker symbol only, in upper case, using a dot for share
classes (BRK.B). If the security was renamed or merged, answer the current
ticker. If you are not sure, answer UNKNOWN. Never explain.
`

// Inferrer is a resolver.Inference backed by a Gemini model. Each Infer is a
// single model request.
type Inferrer struct {
	gen    Generator
	expert *Expert
	search resolver.Provider // optional
}

// Option configures an Inferrer.
type Option func(*Inferrer)

// WithModel sets the model name.
func WithModel(name string) Option {
	return func(i *Inferrer) { i.expert.ModelName = name }
}

// WithSearch adds the securities 'p' finds for the identifier to the
// question. The search is done before the model request, not by the model.
func WithSearch(p resolver.Provider) Option {
	return func(i *Inferrer) { i.search = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Inferrer) { i.expert.log = l }
}

// New returns an Inferrer generating with 'gen', typically a
// genai.Client's Models.
func New(gen Generator, opts ...Option) *Inferrer {
	var temperature float32
	i := &Inferrer{
		gen: gen,
		expert: &Expert{
			Name:      "Identifier",
			ModelName: DefaultModel,
			Config: &genai.GenerateContentConfig{
				Temperature:       &temperature,
				SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instruction}}},
			},
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NewClient returns a Gemini API client using 'apiKey'.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create gemini client: %w", err)
	}
	return client, nil
}

// Infer returns the ticker the model associates with 'cusip'.
func (i *Inferrer) Infer(ctx context.Context, cusip string) (string, error) {
	parts := []*genai.Part{{Text: "CUSIP: " + cusip}}
	if c := i.candidates(ctx, cusip); c != "" {
		parts = append(parts, &genai.Part{Text: c})
	}
	content, err := i.expert.Ask(ctx, i.gen, parts...)
	if err != nil {
		return "", fmt.Errorf("cannot infer %s: %w", cusip, err)
	}
	var text strings.Builder
	for _, p := range content.Parts {
		text.WriteString(p.Text)
	}
	ticker, ok := parseTicker(text.String())
	if !ok {
		return "", fmt.Errorf("%s: %w", cusip, ErrUnknown)
	}
	i.expert.logger().Debug("inferred", zap.String("cusip", cusip), zap.String("ticker", ticker))
	return ticker, nil
}

// candidates lists the securities the search provider returns for 'cusip',
// empty if none or on error.
func (i *Inferrer) candidates(ctx context.Context, cusip string) string {
	if i.search == nil {
		return ""
	}
	found, err := i.search.Search(ctx, cusip)
	if err != nil {
		i.expert.logger().Debug("search failed", zap.String("cusip", cusip), zap.Error(err))
		return ""
	}
	if len(found) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Securities found for this identifier:\n")
	for _, c := range found {
		fmt.Fprintf(&b, "- %s (%s) %s %s\n", c.Ticker, c.Exchange, c.Name, c.ISIN)
	}
	return b.String()
}

// tickerRegex is the whole answer expected from the model.
var tickerRegex = regexp.MustCompile(`^[A-Z0-9.-]{1,10}$`)

// parseTicker accepts an answer that is a ticker and nothing else, quotes
// and backticks aside.
func parseTicker(answer string) (string, bool) {
	answer = strings.TrimSpace(strings.Trim(strings.TrimSpace(answer), "`\"'"))
	if answer == "UNKNOWN" || !tickerRegex.MatchString(answer) {
		return "", false
	}
	return answer, true
}

var _ resolver.Inference = (*Inferrer)(nil)
