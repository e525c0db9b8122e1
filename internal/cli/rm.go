package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Deactivate a memory",
		Long:  "Soft-delete a memory. It stays in the history but is never read or reactivated again.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	forget := &cobra.Command{
		Use:   "forget <conversation-id>",
		Short: "Deactivate every memory learned in a conversation",
		Args:  cobra.ExactArgs(1),
		Run:   runForget,
	}

	RootCmd.AddCommand(rm, forget)
}

func runRm(cmd *cobra.Command, args []string) {
	svc, closeFn := mustService(cmd)
	defer closeFn()

	ok, err := svc.Delete(cmd.Context(), args[0], userID())
	if err != nil {
		exitErr("rm", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":%t,"id":%q}`+"\n", ok, args[0])
}

func runForget(cmd *cobra.Command, args []string) {
	svc, closeFn := mustService(cmd)
	defer closeFn()

	n, err := svc.ForgetConversation(cmd.Context(), args[0], userID())
	if err != nil {
		exitErr("forget", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"conversation":%q,"deactivated":%d}`+"\n", args[0], n)
}
