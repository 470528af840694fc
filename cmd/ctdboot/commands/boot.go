package commands

import (
	"fmt"
	"strings"

	"github.com/agiangrant/ctdboot"
	"github.com/agiangrant/ctdboot/internal/cmdutil"
	"github.com/agiangrant/ctdboot/internal/engine"
	"github.com/spf13/cobra"
)

func newBootCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "boot",
		Short: "Run the bootstrap sequence and report the resulting state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := flags.boot()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cmdutil.Success("engine %s", app.Engine().Version()))
			fmt.Fprintln(out, cmdutil.Success("archive %s", app.PackagePath()))
			fmt.Fprintf(out, "platform: %s\nordering: %s\nstate:    %s\n",
				app.Platform(), app.Ordering(), app.State())

			switch eng := app.Engine().(type) {
			case *engine.Native:
				fmt.Fprintf(out, "module:   %s\n", eng.Module().Path)
			case *engine.Embedded:
				fmt.Fprintf(out, "roots:    %s\n", strings.Join(eng.Assets().Roots(), ", "))
			}
			return nil
		},
	}
}

func newResolveCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Print the package path the target would register, without loading the engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			path, err := ctdboot.ResolvePackagePath(cfg, flags.targetPlatform())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newLookupCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <asset>",
		Short: "Boot and print a bundled asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := flags.boot()
			if err != nil {
				return err
			}
			data, err := app.ReadAsset(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
