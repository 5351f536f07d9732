package cmd

import (
	"github.com/etnz/tradebook"
	"github.com/etnz/tradebook/docs"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// Completion returns the shell completion tree of the tbk commands.
//
// A main package calls Completion().Complete(name) before parsing the flags.
func Completion() *complete.Command {
	reports := predict.Set{"md", "html", "term"}
	formats := predict.Set{string(tradebook.Auto)}
	for _, f := range tradebook.Formats {
		formats = append(formats, string(f))
	}
	topics, _ := docs.GetAllTopics()

	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"book":   predict.Files("*.jsonl"),
			"config": predict.Files("*.yaml"),
			"v":      predict.Nothing,
		},
		Sub: map[string]*complete.Command{
			"detect": {Args: predict.Files("*")},
			"import": {
				Flags: map[string]complete.Predictor{
					"format":  formats,
					"user":    predict.Something,
					"report":  reports,
					"timeout": predict.Something,
				},
				Args: predict.Files("*"),
			},
			"resolve": {Flags: map[string]complete.Predictor{"user": predict.Something}},
			"enqueue": {Flags: map[string]complete.Predictor{"user": predict.Something, "priority": predict.Something}},
			"sweep":   {},
			"queue":   {Flags: map[string]complete.Predictor{"report": reports}},
			"worker":  {Flags: map[string]complete.Predictor{"interval": predict.Something}},
			"search":  {Flags: map[string]complete.Predictor{"all": predict.Nothing}},
			"topic": {
				Flags: map[string]complete.Predictor{"report": reports, "list": predict.Nothing},
				Args:  predict.Set(topics),
			},
			"help":     {},
			"flags":    {},
			"commands": {},
		},
	}
}
