package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/engine"
	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/rank"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Assemble memories for a context window",
		Long: "Rank memories against the query, or list them by --order when no query is given, " +
			"then greedily pack them into a token budget. Every injected memory is recorded as accessed.",
		Run: runContext,
	}

	cmd.Flags().IntP("turn", "t", 0, "Current turn number")
	cmd.Flags().IntP("budget", "b", 0, "Max tokens in output (default: retrieval.budget)")
	cmd.Flags().IntP("top-k", "k", 0, "Max ranked results when a query is given (default: retrieval.top_k)")
	cmd.Flags().String("type", "", "Filter by memory type")
	cmd.Flags().String("order", string(rank.OrderRecency), "Order without a query: time_created, importance, recency")
	cmd.Flags().IntP("limit", "l", engine.DefaultInjectionLimit, "Max listed memories without a query")
	cmd.Flags().Float64("hours", 0, "Only memories created within this many hours (no query)")
	cmd.Flags().Bool("text", false, "Print the packed lines instead of JSON")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	turn, _ := cmd.Flags().GetInt("turn")
	budget, _ := cmd.Flags().GetInt("budget")
	topK, _ := cmd.Flags().GetInt("top-k")
	typ, _ := cmd.Flags().GetString("type")
	order, _ := cmd.Flags().GetString("order")
	limit, _ := cmd.Flags().GetInt("limit")
	hours, _ := cmd.Flags().GetFloat64("hours")
	asText, _ := cmd.Flags().GetBool("text")

	if !rank.ValidOrder(rank.InjectionOrder(order)) {
		exitErr("context", fmt.Errorf("unknown order %q", order))
	}

	cfg := loadConfig()
	if budget <= 0 {
		budget = cfg.Retrieval.Budget
	}
	if topK <= 0 {
		topK = cfg.Retrieval.TopK
	}

	svc, closeFn := mustService(cmd)
	defer closeFn()

	result, err := svc.Context(cmd.Context(), engine.ContextParams{
		UserID:      cfg.User,
		Query:       strings.Join(args, " "),
		CurrentTurn: turn,
		Type:        model.MemoryType(typ),
		TopK:        topK,
		Order:       rank.InjectionOrder(order),
		Limit:       limit,
		HoursAgo:    hours,
		Budget:      budget,
	})
	if err != nil {
		exitErr("context", err)
	}

	if asText {
		for _, m := range result.Memories {
			fmt.Println(m.Content)
		}
		return
	}

	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))
}
