package main

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hukumqa/hukumqa/internal/config"
	"github.com/hukumqa/hukumqa/internal/kg"
)

var kgCmd = &cobra.Command{
	Use:   "kg",
	Short: "Inspect the regulation knowledge graph",
}

var kgStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print node and edge counts",
	RunE:  runKGStats,
}

var kgRelatedCmd = &cobra.Command{
	Use:   "related [regulation-id]",
	Short: "List regulations related to one regulation",
	Args:  cobra.ExactArgs(1),
	RunE:  runKGRelated,
}

func init() {
	kgCmd.AddCommand(kgStatsCmd, kgRelatedCmd)
}

func loadGraph() (*kg.Graph, error) {
	cfg := config.Load()
	logger := logrus.New()
	logger.SetLevel(cfg.ParseLogLevel())
	return kg.Load(cfg.Graph.Path, logger)
}

func runKGStats(cmd *cobra.Command, args []string) error {
	graph, err := loadGraph()
	if err != nil {
		return err
	}

	stats := graph.GetStats()
	fmt.Printf("Nodes: %d\n", stats.Nodes)
	fmt.Printf("Edge pairs: %d\n", stats.Edges)

	types := make([]string, 0, len(stats.EdgesByType))
	for t := range stats.EdgesByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-16s %d\n", t, stats.EdgesByType[kg.EdgeType(t)])
	}
	return nil
}

func runKGRelated(cmd *cobra.Command, args []string) error {
	graph, err := loadGraph()
	if err != nil {
		return err
	}

	related, err := graph.RelatedRegulations(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(related) == 0 {
		fmt.Println("Tidak ada peraturan terkait.")
		return nil
	}
	for _, r := range related {
		title := r.ID
		if r.Node != nil && r.Node.Title != "" {
			title = r.Node.Title
		}
		fmt.Printf("%-14s %s\n", r.Relation, title)
	}
	return nil
}
