package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a memory in place",
		Long: "Change the value, context, scores or expiry of a memory, or deactivate it. " +
			"Type, key and ownership never change.",
		Args: cobra.ExactArgs(1),
		Run:  runUpdate,
	}

	cmd.Flags().String("value", "", "New value")
	cmd.Flags().String("context", "", "New context")
	cmd.Flags().Float64("confidence", 0, "New confidence in [0,1]")
	cmd.Flags().Float64P("importance", "i", 0, "New importance in [0,1]")
	cmd.Flags().String("ttl", "", "Expire after a duration from now, e.g. 7d, 24h")
	cmd.Flags().Bool("deactivate", false, "Deactivate the memory")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	u := store.Updates{}
	flags := cmd.Flags()
	if flags.Changed("value") {
		u["value"], _ = flags.GetString("value")
	}
	if flags.Changed("context") {
		u["context"], _ = flags.GetString("context")
	}
	if flags.Changed("confidence") {
		u["confidence"], _ = flags.GetFloat64("confidence")
	}
	if flags.Changed("importance") {
		u["importance_score"], _ = flags.GetFloat64("importance")
	}
	if flags.Changed("ttl") {
		ttl, _ := flags.GetString("ttl")
		d, err := parseTTL(ttl)
		if err != nil {
			exitErr("update", fmt.Errorf("invalid ttl: %w", err))
		}
		u["expires_at"] = time.Now().UTC().Add(d)
	}
	if deactivate, _ := flags.GetBool("deactivate"); deactivate {
		u["is_active"] = false
	}

	svc, closeFn := mustService(cmd)
	defer closeFn()

	mem, err := svc.Update(cmd.Context(), args[0], userID(), u)
	if err != nil {
		exitErr("update", err)
	}
	if mem == nil {
		exitErr("update", fmt.Errorf("memory not found: %s", args[0]))
	}

	b, _ := json.Marshal(mem)
	fmt.Println(string(b))
}
