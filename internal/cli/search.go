package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/rank"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Rank memories against a query",
		Long:  "Score active memories by keyword overlap, recency, turn distance, importance and access frequency.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().IntP("turn", "t", 0, "Current turn number (0 disables the turn-distance boost)")
	cmd.Flags().IntP("top-k", "k", 0, "Max results (default: retrieval.top_k)")
	cmd.Flags().StringSlice("type", nil, "Filter by memory types")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	turn, _ := cmd.Flags().GetInt("turn")
	topK, _ := cmd.Flags().GetInt("top-k")
	types, _ := cmd.Flags().GetStringSlice("type")
	if topK <= 0 {
		topK = loadConfig().Retrieval.TopK
	}

	p := rank.SearchParams{
		UserID:      userID(),
		Query:       strings.Join(args, " "),
		CurrentTurn: turn,
		TopK:        topK,
	}
	for _, t := range types {
		p.Types = append(p.Types, model.MemoryType(t))
	}

	svc, closeFn := mustService(cmd)
	defer closeFn()

	results, err := svc.Search(cmd.Context(), p)
	if err != nil {
		exitErr("search", err)
	}
	if results == nil {
		results = []rank.Scored{}
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
