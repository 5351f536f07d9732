package cmd

import (
	"fmt"
	"os"

	"github.com/etnz/tradebook/renderer"
)

// printMarkdown prints a markdown report as 'format': "md" for raw markdown,
// "html", or "term" for the terminal.
func printMarkdown(md, format string) error {
	var (
		out string
		err error
	)
	switch format {
	case "md":
		out = md
	case "html":
		out, err = renderer.HTML(md)
	case "term", "":
		out, err = renderer.Terminal(md, 100)
	default:
		return fmt.Errorf("unknown report format %q, want md, html or term", format)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, out)
	return err
}
