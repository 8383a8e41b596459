package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tonic/internal/app"
	"tonic/internal/config"
)

const appName = "tonic"

var (
	configPath string
	envFile    string
	flags      *config.Flags
)

var rootCmd = &cobra.Command{
	Use:   appName + " [path]",
	Short: "Find what fills your disk and clean it up safely",
	Long: "tonic scans a directory tree, classifies what it finds by storage domain and removal risk,\n" +
		"draws it as a treemap and cleans selected items through a reversible trash.",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

var tuiCmd = &cobra.Command{
	Use:   "tui [path]",
	Short: "Browse and clean a directory tree in the terminal (the default)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default is the user config dir)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with TONIC_* overrides")
	flags = config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(tuiCmd, scanCmd, treemapCmd, cleanCmd, undoCmd, exclusionsCmd, historyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration from file, environment and flags, with
// an optional positional root path taking precedence.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}
	flags.Apply(cfg)
	if len(args) > 0 {
		cfg.Scan.Root = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp builds the application for one command and tears it down after.
func withApp(cmd *cobra.Command, args []string, fn func(ctx context.Context, application *app.App) error) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	application, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	application.ConfigPath = configPath
	runErr := fn(cmd.Context(), application)
	if err := application.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func runTUI(cmd *cobra.Command, args []string) error {
	return withApp(cmd, args, func(ctx context.Context, application *app.App) error {
		return application.RunTUI(ctx)
	})
}
