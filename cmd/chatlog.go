package cmd

import (
	"fmt"

	"github.com/BioHazard786/roomcall/internal/ephemeral"
	"github.com/BioHazard786/roomcall/internal/ui"
	"github.com/spf13/cobra"
)

var chatlogCmd = &cobra.Command{
	Use:   "chatlog <file>",
	Short: "Show a chat log saved with join --chat-log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := ephemeral.ReadChatLog(args[0])
		if err != nil {
			return err
		}
		fmt.Println(ui.ChatLogTable(&log))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatlogCmd)
}
