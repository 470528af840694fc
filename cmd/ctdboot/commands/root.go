// Package commands implements the ctdboot command line.
package commands

import (
	"fmt"

	"github.com/agiangrant/ctdboot"
	"github.com/agiangrant/ctdboot/internal/cmdutil"
	"github.com/agiangrant/ctdboot/internal/logutil"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	platform   string
}

// NewRootCommand builds the ctdboot command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}
	examples := cmdutil.Examples{
		{Example: "ctdboot boot", Comment: "Load the engine and register the package for this platform"},
		{Example: "ctdboot resolve --platform android", Comment: "Print the package path the android target would register"},
		{Example: "ctdboot lookup gui/scene.json", Comment: "Boot and print a bundled asset"},
		{Example: "ctdboot config init", Comment: "Write a default ctdboot.toml"},
	}

	root := &cobra.Command{
		Use: "ctdboot",
		Long: fmt.Sprintf(`ctdboot brings up the Centered engine module and registers the installed
application package as an archive root.

Configuration is read from '-c %[1]s', or ctdboot.toml in the working directory.`,
			cmdutil.Underline("<CONFIG>")),
		Example:       examples.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logutil.InitLogger()
		},
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path of the configuration file")
	root.PersistentFlags().StringVar(&flags.platform, "platform", "", "Target section to use (defaults to the running platform)")

	root.AddCommand(
		newBootCommand(flags),
		newResolveCommand(flags),
		newLookupCommand(flags),
		newConfigCommand(flags),
	)
	return root
}

func (f *globalFlags) load() (ctdboot.Config, error) {
	return ctdboot.LoadConfig(f.configPath)
}

func (f *globalFlags) targetPlatform() ctdboot.Platform {
	if f.platform != "" {
		return ctdboot.Platform(f.platform)
	}
	return ctdboot.CurrentPlatform()
}

func (f *globalFlags) boot() (*ctdboot.App, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	return ctdboot.Boot(cfg, ctdboot.WithPlatform(f.targetPlatform()))
}
