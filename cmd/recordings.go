package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/BioHazard786/roomcall/internal/config"
	"github.com/BioHazard786/roomcall/internal/logging"
	"github.com/BioHazard786/roomcall/internal/recording"
	"github.com/BioHazard786/roomcall/internal/ui"
	"github.com/spf13/cobra"
)

var flagOutputDir string

var recordingsCmd = &cobra.Command{
	Use:     "recordings",
	Aliases: []string{"rec"},
	Short:   "Work with recordings saved by the coordinator",
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <file>...",
	Short: "Download recording artifacts",
	Long: `Download recording artifacts announced at the end of a recording.

Examples:
  roomcall recordings fetch 20250601-r1.webm
  roomcall recordings fetch --dir ~/Videos a.webm b.webm`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchRecordings(cmd.Context(), args)
	},
}

var urlCmd = &cobra.Command{
	Use:   "url <file>",
	Short: "Print the download URL of a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(config.Options{ConfigFile: flagConfig, Domain: flagDomain})
		if err != nil {
			return err
		}
		fmt.Println(recording.NewFetcher(cfg.RecordingsURL, logging.For("recording")).URL(args[0]))
		return nil
	},
}

func fetchRecordings(ctx context.Context, names []string) error {
	cfg, err := LoadConfig(config.Options{ConfigFile: flagConfig, Domain: flagDomain})
	if err != nil {
		return err
	}

	dir := flagOutputDir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fetcher := recording.NewFetcher(cfg.RecordingsURL, logging.For("recording"))
	view := ui.NewDownloadUI(names, cancel)
	view.Start()

	results := make([]ui.DownloadResult, len(names))
	for i, name := range names {
		results[i].Name = name
		path, err := fetcher.Download(ctx, name, dir, view.Progress(i))
		if err != nil {
			results[i].Err = err
			view.Fail(i, err)
			continue
		}
		results[i].Path = path
		if info, statErr := os.Stat(path); statErr == nil {
			results[i].Size = info.Size()
		}
		view.Complete(i, path)
	}
	view.Wait()

	fmt.Println()
	fmt.Println(ui.DownloadSummary(results))

	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("%d of %d recordings failed", countFailed(results), len(results))
		}
	}
	return nil
}

func countFailed(results []ui.DownloadResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func init() {
	rootCmd.AddCommand(recordingsCmd)
	recordingsCmd.AddCommand(fetchCmd, urlCmd)

	recordingsCmd.PersistentFlags().StringVarP(&flagDomain, "domain", "d", "", "Custom coordinator domain")
	fetchCmd.Flags().StringVarP(&flagOutputDir, "dir", "o", "", "Directory to save recordings in (default current directory)")
}
