// cli.go holds the stablectl entrypoint, root command, and shared flag plumbing.
package stablecli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const defaultTimeout = 5 * time.Minute

var rootCmd = &cobra.Command{
	Use:   "stablectl",
	Short: "Manage stable care routines: templates, schedules, and guided execution.",
	Long: `stablectl manages daily stable care from the terminal.

It talks to a stableops server when --server (or server in
.stableops/config.yaml) is set; otherwise it keeps everything in a local
SQLite database, which is handy for a single barn without
infrastructure.

  Quickstart (local mode):
    stablectl horses add Whisper --stable barn-1
    stablectl template apply -f morning.yaml --stable barn-1
    stablectl schedule <template-id> --at 2026-09-01T07:00
    stablectl run <instance-id>`,
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("server", "", "Base URL of a stableops server (empty for local SQLite mode)")
	f.String("token", "", "Bearer token for the server")
	f.String("db", "", "SQLite database path for local mode (default: .stableops/local.db)")
	f.String("stable", "", "Stable ID commands operate on")
	f.String("caretaker", "", "Caretaker name stamped on completions")
	f.Duration("timeout", defaultTimeout, "Maximum command execution time (e.g., 5m, 1h)")

	rootCmd.AddCommand(templateCmd, scheduleCmd, instancesCmd, runnerCmd, horsesCmd, notesCmd)
}

// Main runs the stablectl CLI.
func Main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// commandContext resolves config from flags and file and sets up a
// cancellable context wired to SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc, Config, error) {
	flags := cmd.Root().PersistentFlags()

	var flagCfg Config
	flagCfg.Server, _ = flags.GetString("server")
	flagCfg.Token, _ = flags.GetString("token")
	flagCfg.DB, _ = flags.GetString("db")
	flagCfg.StableID, _ = flags.GetString("stable")
	flagCfg.Caretaker, _ = flags.GetString("caretaker")

	cfg, _, err := resolveConfig(flagCfg)
	if err != nil {
		return nil, nil, Config{}, err
	}

	timeout, _ := flags.GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel, cfg, nil
}
