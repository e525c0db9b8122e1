package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Retrieve a memory by id",
		Long:  "Print one memory, active or not, owned by the current user.",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	svc, closeFn := mustService(cmd)
	defer closeFn()

	mem, err := svc.Get(cmd.Context(), args[0], userID())
	if err != nil {
		exitErr("get", err)
	}
	if mem == nil {
		exitErr("get", fmt.Errorf("memory %s not found", args[0]))
	}

	b, _ := json.MarshalIndent(mem, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
