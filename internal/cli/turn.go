package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/turn-memory/internal/engine"
	"github.com/rcliao/turn-memory/internal/extract"
)

func init() {
	cmd := &cobra.Command{
		Use:   "turn [message]",
		Short: "Process a conversation turn",
		Long: "Decide whether the turn is worth remembering, extract memories from it and store them. " +
			"The user message can be a positional arg or piped via stdin.",
		Run: runTurn,
	}

	cmd.Flags().IntP("turn", "t", 1, "Turn number (1-based)")
	cmd.Flags().StringP("conversation", "c", "", "Conversation id recorded as provenance")
	cmd.Flags().StringP("response", "r", "", "Assistant response for this turn")
	cmd.Flags().String("history", "", "JSON file with prior messages ([{\"role\":\"user\",\"content\":\"...\"}])")

	RootCmd.AddCommand(cmd)
}

func runTurn(cmd *cobra.Command, args []string) {
	turn, _ := cmd.Flags().GetInt("turn")
	conversation, _ := cmd.Flags().GetString("conversation")
	response, _ := cmd.Flags().GetString("response")
	historyPath, _ := cmd.Flags().GetString("history")
	message := readText(args)

	var history []extract.Message
	if historyPath != "" {
		data, err := os.ReadFile(historyPath)
		if err != nil {
			exitErr("read history", err)
		}
		if err := json.Unmarshal(data, &history); err != nil {
			exitErr("parse history", err)
		}
	}

	svc, closeFn := mustService(cmd)
	defer closeFn()

	res, err := svc.ProcessTurn(cmd.Context(), engine.TurnInput{
		UserID:            userID(),
		ConversationID:    conversation,
		TurnNumber:        turn,
		UserMessage:       message,
		AssistantResponse: response,
		History:           history,
	})
	if err != nil {
		exitErr("turn", err)
	}

	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}
