package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hukumqa/hukumqa/internal/models"
)

var streamCmd = &cobra.Command{
	Use:   "stream [question]",
	Short: "Ask a question and stream the answer as it is generated",
	Args:  cobra.ExactArgs(1),
	RunE:  runStream,
}

func runStream(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}

	events, err := eng.chain.QueryStream(ctx, args[0], eng.queryOptions())
	if err != nil {
		return err
	}

	for ev := range events {
		switch ev.Type {
		case models.EventMetadata:
			for _, c := range ev.Citations {
				fmt.Printf("[%d] %s\n", c.Number, c.Citation)
			}
			if ev.Confidence != nil {
				fmt.Printf("Keyakinan: %s (%.2f)\n\n", ev.Confidence.Label, ev.Confidence.Score)
			}
		case models.EventChunk:
			fmt.Print(ev.Text)
		case models.EventDone:
			fmt.Println()
			if ev.Validation != nil {
				fmt.Printf("\nRisiko halusinasi: %s\n", ev.Validation.HallucinationRisk)
			}
		}
	}
	return nil
}
