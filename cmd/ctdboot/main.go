package main

import (
	"fmt"

	"github.com/agiangrant/ctdboot/cmd/ctdboot/commands"
	"github.com/agiangrant/ctdboot/internal/cmdutil"
)

const version = "0.1.0"

func main() {
	root := commands.NewRootCommand()
	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("ctdboot version %s\n", version))
	cmdutil.Run(root)
}
