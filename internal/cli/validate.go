package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/msgsync/pkg/msgsync"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Config string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a synchronizer config",
		Long: `Load a synchronizer config, apply MSGSYNC_* environment overrides, and
report the effective settings or every problem found.

Examples:
  msgsync validate --config sync.yaml
  msgsync validate --config sync.json --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to synchronizer config (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitFailure, "invalid config", err)
	}
	policy, err := msgsync.ParsePolicy(cfg.Policy)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid config", err)
	}
	prune, err := msgsync.ParsePrune(cfg.Prune)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid config", err)
	}
	cfg.Policy, cfg.Prune = policy.String(), prune.String()

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), cfg)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(),
		"config OK: sync=%s streams=%d policy=%s prune=%s queue_size=%d slop=%s\n",
		cfg.Name, len(cfg.Streams), cfg.Policy, cfg.Prune, cfg.QueueSize, cfg.Slop)
	return err
}
