package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [value]",
		Short: "Store a memory",
		Long: "Store a memory directly, superseding any active memory with the same type and key. " +
			"Value can be a positional arg or piped via stdin.",
		Run: runPut,
	}

	cmd.Flags().String("type", "", "Memory type: preference, fact, entity, commitment, instruction, constraint, habit, opinion, temporary_state, goal")
	cmd.Flags().StringP("key", "k", "", "Key (required)")
	cmd.Flags().String("context", "", "Free-text context")
	cmd.Flags().Float64("confidence", 1.0, "Confidence in [0,1]")
	cmd.Flags().Float64P("importance", "i", 0.5, "Importance in [0,1]")
	cmd.Flags().IntP("turn", "t", 0, "Source turn")
	cmd.Flags().StringP("conversation", "c", "", "Source conversation id")
	cmd.Flags().String("ttl", "", "Expire after a duration, e.g. 7d, 24h, 30m")

	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("key")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")
	key, _ := cmd.Flags().GetString("key")
	note, _ := cmd.Flags().GetString("context")
	confidence, _ := cmd.Flags().GetFloat64("confidence")
	importance, _ := cmd.Flags().GetFloat64("importance")
	turn, _ := cmd.Flags().GetInt("turn")
	conversation, _ := cmd.Flags().GetString("conversation")
	ttl, _ := cmd.Flags().GetString("ttl")

	value := readText(args)
	if value == "" {
		exitErr("put", fmt.Errorf("value is required (positional arg or stdin)"))
	}

	var expiresAt *time.Time
	if ttl != "" {
		d, err := parseTTL(ttl)
		if err != nil {
			exitErr("put", fmt.Errorf("invalid ttl: %w", err))
		}
		exp := time.Now().UTC().Add(d)
		expiresAt = &exp
	}

	svc, closeFn := mustService(cmd)
	defer closeFn()

	mem, err := svc.Put(cmd.Context(), store.WriteParams{
		UserID:         userID(),
		Type:           model.MemoryType(typ),
		Key:            key,
		Value:          value,
		Context:        note,
		Confidence:     confidence,
		Importance:     importance,
		ConversationID: conversation,
		SourceTurn:     turn,
		ExpiresAt:      expiresAt,
	})
	if err != nil {
		exitErr("put", err)
	}

	b, _ := json.Marshal(mem)
	fmt.Println(string(b))
}

// readText returns the positional args joined, or stdin when it is piped.
func readText(args []string) string {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " "))
	}
	stat, err := os.Stdin.Stat()
	if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
		return ""
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}
	return strings.TrimSpace(string(b))
}

var ttlRegex = regexp.MustCompile(`^(\d+)([dhms])$`)

// parseTTL parses a TTL string like "7d", "24h", "30m" into a time.Duration.
func parseTTL(s string) (time.Duration, error) {
	m := ttlRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid format %q (use e.g. 7d, 24h, 30m, 60s)", s)
	}
	n, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	default:
		return time.Duration(n) * time.Second, nil
	}
}
