package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
)

type searchCmd struct {
	all bool
}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "search securities on EODHD" }
func (*searchCmd) Usage() string {
	return `tbk search [-all] <ticker|name|ISIN|CUSIP>

  Searches the EODHD securities. By default only US listings, the ones used
  to resolve CUSIPs, are printed. Requires EODHD_API_KEY.
`
}

func (c *searchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "print listings from all exchanges")
}

func (c *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: a search term is required.")
		return subcommands.ExitUsageError
	}
	a, err := openApp(ctx, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	if a.provider == nil {
		fmt.Fprintf(os.Stderr, "Error: %s is not set.\n", EnvEODHDKey)
		return subcommands.ExitFailure
	}

	term := strings.Join(f.Args(), " ")
	if !c.all {
		candidates, err := a.provider.Search(ctx, term)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		for _, cand := range candidates {
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", cand.Ticker, cand.Exchange, cand.ISIN, cand.CUSIP, cand.Name)
		}
		return subcommands.ExitSuccess
	}

	results, err := a.provider.Client.Search(ctx, term)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, r := range results {
		fmt.Printf("%s.%s\t%s\t%s\t%s\t%s\n", r.Code, r.Exchange, r.Type, r.Currency, r.ISIN, r.Name)
	}
	return subcommands.ExitSuccess
}
