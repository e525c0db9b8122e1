package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/trigger"
)

func init() {
	cmd := &cobra.Command{
		Use:   "decide [message]",
		Short: "Show whether a turn would trigger extraction",
		Long:  "Evaluate the extraction trigger policy for a message. Message can be a positional arg or piped via stdin.",
		Run:   runDecide,
	}

	cmd.Flags().IntP("turn", "t", 1, "Turn number (1-based)")
	cmd.Flags().Bool("explain", false, "List every matched signal, not just the winning rule")

	RootCmd.AddCommand(cmd)
}

func runDecide(cmd *cobra.Command, args []string) {
	turn, _ := cmd.Flags().GetInt("turn")
	explain, _ := cmd.Flags().GetBool("explain")
	message := readText(args)

	svc, closeFn := mustService(cmd)
	defer closeFn()

	out := struct {
		trigger.Decision
		Signals []trigger.Signal `json:"signals,omitempty"`
	}{Decision: svc.Decide(turn, message)}
	if explain {
		out.Signals = svc.Explain(turn, message)
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
