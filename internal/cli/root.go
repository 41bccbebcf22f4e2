// Package cli holds deck's cobra commands.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cultcreative/deck/internal/app"
	"github.com/cultcreative/deck/internal/config"
	"github.com/cultcreative/deck/internal/ui"
)

// Version is stamped at build time.
var Version = "dev"

// NewRootCmd returns the deck command tree. Without a subcommand deck opens
// the interactive board.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "deck",
		Short:   "Campaign board, submissions and uploads from the terminal",
		Version: Version,
		Long: `deck is a terminal client for the campaign platform.

Run without arguments to open the interactive board. Subcommands cover
scripted use: printing and editing the board, uploading draft and pitch
videos, listing submissions and watching live events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, false, func(ctx context.Context, rt *app.Runtime) error {
				return ui.Run(ctx, rt)
			})
		},
	}

	root.PersistentFlags().String("config", "", "config file (default ~/.config/deck/config.toml)")
	root.PersistentFlags().String("user", "", "user id to sign in as (overrides config)")
	root.PersistentFlags().BoolP("verbose", "v", false, "log to stderr")

	root.AddCommand(BoardCmd())
	root.AddCommand(UploadCmd())
	root.AddCommand(SubmissionsCmd())
	root.AddCommand(WatchCmd())
	return root
}

// withRuntime loads config, builds the runtime, starts it and runs fn. The
// TUI keeps the terminal, so it only logs to the configured file.
func withRuntime(cmd *cobra.Command, allowVerbose bool, fn func(ctx context.Context, rt *app.Runtime) error) error {
	configPath, _ := cmd.Flags().GetString("config")
	user, _ := cmd.Flags().GetString("user")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if u := strings.TrimSpace(user); u != "" {
		cfg.UserID = u
	}

	logger, err := app.NewLogger(cfg.LogPath, verbose && allowVerbose)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Start(); err != nil {
		return err
	}
	return fn(ctx, rt)
}

// requireUser returns the signed-in user id or an error naming the flag.
func requireUser(rt *app.Runtime) (string, error) {
	if id := rt.UserID(); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no user id configured\nHint: pass --user or set user_id in the config file")
}
