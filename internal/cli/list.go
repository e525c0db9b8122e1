package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active memories",
		Run:   runList,
	}

	cmd.Flags().String("type", "", "Filter by memory type")
	cmd.Flags().Float64("hours", 0, "Only memories created within this many hours")
	cmd.Flags().Bool("keys-only", false, "Only output type/key pairs")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")
	hours, _ := cmd.Flags().GetFloat64("hours")
	keysOnly, _ := cmd.Flags().GetBool("keys-only")

	svc, closeFn := mustService(cmd)
	defer closeFn()

	memories, err := svc.List(cmd.Context(), userID(), model.MemoryType(typ), hours)
	if err != nil {
		exitErr("list", err)
	}

	if keysOnly {
		for _, m := range memories {
			fmt.Printf("%s/%s\n", m.Type, m.Key)
		}
		return
	}

	if memories == nil {
		memories = []model.Memory{}
	}
	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
