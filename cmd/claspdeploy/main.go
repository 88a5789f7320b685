package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schaermu/claspsync/internal/auth"
	"github.com/schaermu/claspsync/internal/cli"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	globals cli.Globals

	pushFlag   bool
	deployFlag bool
	fullFlag   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "claspdeploy",
	Short: "Push, version and deploy a linked Apps Script project",
	Long: `claspdeploy drives clasp for a project that is already linked (.clasp.json)
and logged in (~/.clasprc.json). When either is missing it prints guidance and
does nothing.

--deploy creates a new version and then updates the deployment with it.`,
	Example: `  claspdeploy --push    (-p)  Push code to Apps Script
  claspdeploy --deploy  (-d)  Deploy the project
  claspdeploy --full    (-f)  Push and deploy in one command`,
	Args:               cobra.ArbitraryArgs,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	SilenceUsage:       true,
	RunE:               runRoot,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("claspdeploy %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	globals.Register(rootCmd)

	rootCmd.Flags().BoolVarP(&pushFlag, "push", "p", false, "push code to Apps Script")
	rootCmd.Flags().BoolVarP(&deployFlag, "deploy", "d", false, "create a version and deploy it")
	rootCmd.Flags().BoolVarP(&fullFlag, "full", "f", false, "push and deploy in one command")

	rootCmd.AddCommand(versionCmd)
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx, cancel := cli.SignalContext()
	defer cancel()

	logger := globals.SetupLogger()

	cfg, err := globals.LoadConfig(cmd, logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	status := auth.Check(cfg.Paths.ProjectRoot, cfg.Paths.CredentialsFile, logger)
	if !status.Ready() {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, status.Guidance())
		fmt.Fprintln(out, "See the Google Apps Script clasp documentation for authentication setup.")
		return nil
	}
	logger.Info("already authenticated with clasp")

	if !pushFlag && !deployFlag && !fullFlag {
		cli.HintStrayArgs(cmd, args, []string{"push", "deploy", "full"})
		return cmd.Help()
	}

	engine := cli.NewEngine(cfg, logger, globals.DryRun)

	switch {
	case pushFlag:
		_, err = engine.Push(ctx)
	case deployFlag:
		_, err = engine.Deploy(ctx)
	case fullFlag:
		_, err = engine.Full(ctx)
	}
	if err != nil {
		logger.Error("publishing failed", "error", err)
		return err
	}

	return nil
}
