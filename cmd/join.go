package cmd

import (
	"fmt"

	"github.com/BioHazard786/roomcall/internal/config"
	"github.com/BioHazard786/roomcall/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagDomain   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagUsername string
	flagNoAudio  bool
	flagNoVideo  bool
	flagChatLog  string
)

var joinCmd = &cobra.Command{
	Use:     "join [room-id]",
	Aliases: []string{"j"},
	Short:   "Join a room, or create one when no room ID is given",
	Long: `Join a video room on the call coordinator. Without a room ID a new room is
created and you become its leader.

Examples:
  roomcall join
  roomcall join 4f1c2a --name Alice
  roomcall join 4f1c2a --no-video --chat-log call.chat
  roomcall join --domain call.example.com --relay`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var roomID string
		if len(args) == 1 {
			roomID = args[0]
		}
		return joinRoom(cmd, roomID)
	},
}

func joinRoom(cmd *cobra.Command, roomID string) error {
	cfg, err := LoadConfig(config.Options{
		ConfigFile:  flagConfig,
		Domain:      flagDomain,
		STUNServer:  flagSTUN,
		TURNServer:  flagTURN,
		TURNUser:    flagTURNUser,
		TURNPass:    flagTURNPass,
		ForceRelay:  flagRelay,
		Username:    flagUsername,
		NoAudio:     flagNoAudio,
		NoVideo:     flagNoVideo,
		ChatLogPath: flagChatLog,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	spinner := ui.NewConnectionSpinner("Connecting to coordinator...")
	spinner.Start()
	ch, err := Connect(ctx, cfg)
	if err != nil {
		spinner.Error("Could not reach the coordinator")
		return err
	}
	spinner.Stop()

	session, err := NewCallSession(cfg, ch, roomID)
	if err != nil {
		ch.Close()
		return err
	}

	res, err := session.Run(ctx)
	showSummary(cfg, res)
	return err
}

func showSummary(cfg *config.Config, res ui.CallResult) {
	if res.Active != nil && res.Active.Room.Joined() {
		fmt.Println()
		fmt.Println(ui.ParticipantsTable(res.Active, nil))
	}

	final := res.Final
	if final == nil {
		return
	}

	if cfg.ChatLogPath != "" && len(final.Chat) > 0 {
		if err := SaveChatLog(cfg.ChatLogPath, final); err != nil {
			ui.PrintWarning(fmt.Sprintf("chat log not saved: %v", err))
		} else {
			ui.PrintSuccessf("Chat saved to %s", cfg.ChatLogPath)
		}
	}

	for _, file := range final.Recording.Files {
		ui.PrintInfof("Recording %s is available: roomcall recordings fetch %s", file, file)
	}
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom coordinator domain")
	joinCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	joinCmd.Flags().StringVarP(&flagUsername, "name", "n", "", "Display name")
	joinCmd.Flags().BoolVar(&flagNoAudio, "no-audio", false, "Join with the microphone off")
	joinCmd.Flags().BoolVar(&flagNoVideo, "no-video", false, "Join with the camera off")
	joinCmd.Flags().StringVar(&flagChatLog, "chat-log", "", "Save the chat to this file when leaving")
}
