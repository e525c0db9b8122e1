package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show every version of a key",
		Long:  "List all memories ever written for a type and key, newest first. Only the newest can be active.",
		Run:   runHistory,
	}

	cmd.Flags().String("type", "", "Memory type (required)")
	cmd.Flags().StringP("key", "k", "", "Key (required)")

	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("key")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")
	key, _ := cmd.Flags().GetString("key")

	svc, closeFn := mustService(cmd)
	defer closeFn()

	memories, err := svc.History(cmd.Context(), userID(), model.MemoryType(typ), key)
	if err != nil {
		exitErr("history", err)
	}
	if len(memories) == 0 {
		exitErr("history", fmt.Errorf("memory not found: %s/%s", typ, key))
	}

	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
