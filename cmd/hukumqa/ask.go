package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question and print the cited answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}

	resp, err := eng.chain.Query(ctx, args[0], eng.queryOptions())
	if err != nil {
		return err
	}
	eng.observe(flagStrategy, resp)

	fmt.Println(resp.Answer)
	if len(resp.Citations) > 0 {
		fmt.Println("\nSumber:")
		for _, c := range resp.Citations {
			fmt.Printf("  [%d] %s (skor %.4f)\n", c.Number, c.Citation, c.Score)
		}
	}
	fmt.Printf("\nKeyakinan: %s (%.2f)\n", resp.Confidence, resp.ConfidenceDetail.Score)
	fmt.Printf("Risiko halusinasi: %s\n", resp.Validation.HallucinationRisk)
	if resp.Validation.GroundingScore != nil {
		fmt.Printf("Skor grounding: %.2f\n", *resp.Validation.GroundingScore)
	}
	return nil
}
