package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "access <id>",
		Short: "Record that a memory was used",
		Args:  cobra.ExactArgs(1),
		Run:   runAccess,
	}

	cmd.Flags().IntP("turn", "t", 0, "Turn at which the memory was used")

	RootCmd.AddCommand(cmd)
}

func runAccess(cmd *cobra.Command, args []string) {
	turn, _ := cmd.Flags().GetInt("turn")

	svc, closeFn := mustService(cmd)
	defer closeFn()

	ok, err := svc.RecordAccess(cmd.Context(), args[0], userID(), turn)
	if err != nil {
		exitErr("access", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":%t,"id":%q,"turn":%d}`+"\n", ok, args[0], turn)
}
