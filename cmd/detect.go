package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/tradebook"
	"github.com/google/subcommands"
)

type detectCmd struct{}

func (*detectCmd) Name() string     { return "detect" }
func (*detectCmd) Synopsis() string { return "print the broker format of export files" }
func (*detectCmd) Usage() string {
	return `tbk detect <file>...

  Prints the broker format detected for each file, "generic" when no
  broker header signature matches.
`
}
func (c *detectCmd) SetFlags(f *flag.FlagSet) {}

func (c *detectCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one file is required.")
		return subcommands.ExitUsageError
	}
	status := subcommands.ExitSuccess
	for _, name := range f.Args() {
		data, err := os.ReadFile(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Printf("%s\t%s\n", name, tradebook.DetectFormat(data))
	}
	return status
}
