package commands

import (
	"fmt"
	"os"

	"github.com/agiangrant/ctdboot"
	"github.com/agiangrant/ctdboot/internal/cmdutil"
	"github.com/agiangrant/ctdboot/internal/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newConfigCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create ctdboot.toml",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.configPath
			if path == "" {
				path = config.FileName
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := ctdboot.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cmdutil.Success("Created %s", path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the target contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			p := flags.targetPlatform()
			target := cfg.Target(string(p))
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cmdutil.Success("configuration valid"))
			fmt.Fprintf(out, "module:      %s (%s)\nplatform:    %s\nordering:    %s\npath_source: %s\n",
				cfg.Engine.Module, cfg.Engine.Backend, p, target.Ordering, target.PathSource)
			return nil
		},
	}

	cmd.AddCommand(initCmd, checkCmd)
	return cmd
}
