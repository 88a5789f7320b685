package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schaermu/claspsync/internal/cli"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	globals cli.Globals

	pushFlag  bool
	pullFlag  bool
	cleanFlag bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "claspsync",
	Short: "Push and pull Apps Script sources kept in src/",
	Long: `claspsync keeps Google Apps Script sources in a src/ directory while clasp
only sees files at the project root.

--push copies src/ into the project root, runs "clasp push" and removes the
copies again. --pull runs "clasp pull" and moves the downloaded .gs, .js and
.html files into src/.`,
	Example: `  claspsync --push    (-p)  Push code to Apps Script (from src/)
  claspsync --pull    (-l)  Pull code from Apps Script (to src/)
  claspsync --clean   (-c)  Remove copies left behind by a failed push`,
	Args:               cobra.ArbitraryArgs,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	SilenceUsage:       true,
	RunE:               runRoot,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("claspsync %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	globals.Register(rootCmd)

	rootCmd.Flags().BoolVarP(&pushFlag, "push", "p", false, "push code to Apps Script (from src/)")
	rootCmd.Flags().BoolVarP(&pullFlag, "pull", "l", false, "pull code from Apps Script (to src/)")
	rootCmd.Flags().BoolVarP(&cleanFlag, "clean", "c", false, "remove staged copies left by a failed push")

	rootCmd.AddCommand(versionCmd)
}

func runRoot(cmd *cobra.Command, args []string) error {
	if !pushFlag && !pullFlag && !cleanFlag {
		cli.HintStrayArgs(cmd, args, []string{"push", "pull", "clean"})
		return cmd.Help()
	}

	ctx, cancel := cli.SignalContext()
	defer cancel()

	logger := globals.SetupLogger()

	cfg, err := globals.LoadConfig(cmd, logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine := cli.NewEngine(cfg, logger, globals.DryRun)

	switch {
	case pushFlag:
		_, err = engine.PushStaged(ctx)
	case pullFlag:
		_, err = engine.Pull(ctx)
	case cleanFlag:
		_, err = engine.Clean()
	}
	if err != nil {
		logger.Error("publishing failed", "error", err)
		return err
	}

	return nil
}
