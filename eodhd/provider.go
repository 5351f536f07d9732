package eodhd

import (
	"context"
	"strings"

	"github.com/etnz/tradebook"
	"github.com/etnz/tradebook/resolver"
)

// usExchanges are the exchange codes of US listings in search results.
var usExchanges = map[string]bool{
	"US":        true,
	"NYSE":      true,
	"NASDAQ":    true,
	"NYSE ARCA": true,
	"NYSE MKT":  true,
	"AMEX":      true,
	"BATS":      true,
	"OTC":       true,
	"PINK":      true,
}

// Provider is the resolver.Provider view of a Client: searches are limited
// to US listings.
type Provider struct {
	*Client
}

// Search returns the US listings matching 'identifier'.
func (p Provider) Search(ctx context.Context, identifier string) ([]resolver.Candidate, error) {
	results, err := p.Client.Search(ctx, identifier)
	if err != nil {
		return nil, err
	}
	var candidates []resolver.Candidate
	for _, r := range results {
		if !usExchanges[strings.ToUpper(r.Exchange)] {
			continue
		}
		c := resolver.Candidate{
			Ticker:   strings.ToUpper(r.Code),
			Exchange: r.Exchange,
			Name:     r.Name,
			ISIN:     r.ISIN,
		}
		c.CUSIP, _ = tradebook.CUSIPFromISIN(r.ISIN)
		candidates = append(candidates, c)
	}
	return candidates, nil
}

var _ resolver.Provider = Provider{}
