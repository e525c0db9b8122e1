package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import memories from JSON",
		Long: "Import memories from JSON on stdin, in the format produced by export. " +
			"Each one is written for the current user and supersedes any active memory with the same key.",
		Run: runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var memories []model.Memory
	if err := json.Unmarshal(data, &memories); err != nil {
		exitErr("parse json", err)
	}

	svc, closeFn := mustService(cmd)
	defer closeFn()

	writes, skipped := importParams(memories, userID(), time.Now().UTC())
	imported := 0
	for _, p := range writes {
		_, err := svc.Put(cmd.Context(), p)
		if errors.Is(err, store.ErrInvalid) {
			skipped++
			continue
		}
		if err != nil {
			exitErr("import", err)
		}
		imported++
	}

	fmt.Printf(`{"ok":true,"imported":%d,"skipped":%d}`+"\n", imported, skipped)
}

// importParams turns exported memories into writes for user. Inactive and
// already expired entries are skipped: writing them would supersede a live
// value with one no reader can see.
func importParams(memories []model.Memory, user string, now time.Time) ([]store.WriteParams, int) {
	var out []store.WriteParams
	skipped := 0
	for _, m := range memories {
		if !m.IsActive || m.Expired(now) {
			skipped++
			continue
		}
		out = append(out, store.WriteParams{
			UserID:         user,
			Type:           m.Type,
			Key:            m.Key,
			Value:          m.Value,
			Context:        m.Context,
			Confidence:     m.Confidence,
			Importance:     m.Importance,
			ConversationID: m.SourceConversationID,
			SourceTurn:     m.SourceTurn,
			ExpiresAt:      m.ExpiresAt,
		})
	}
	return out, skipped
}
