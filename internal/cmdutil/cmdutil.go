// Package cmdutil holds the formatting helpers shared by ctdboot commands.
package cmdutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Example represents an example of command line
type Example struct {
	Example string
	Comment string
}

// Examples represents a group of examples
type Examples []Example

// String implements the fmt.Stringer interface
func (es Examples) String() string {
	if len(es) == 0 {
		return ""
	}

	var max int
	for _, e := range es {
		if len(e.Example) > max {
			max = len(e.Example)
		}
	}

	var all []string
	for _, e := range es {
		all = append(all, fmt.Sprintf("  %s%s# %s", Highlight(e.Example), strings.Repeat(" ", max-len(e.Example)+3), e.Comment))
	}
	return strings.Join(all, "\n")
}

// Run executes cmd and exits non-zero on failure.
func Run(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		zap.L().Error("Command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, Failure("Error: %v", err))
		os.Exit(1)
	}
}

// Underline add the underline display in the terminal for the string
func Underline(f string, args ...interface{}) string {
	return color.New(color.Bold, color.Underline).Sprintf(f, args...)
}

// Highlight highlights the string in the terminal
func Highlight(f string, args ...interface{}) string {
	return color.New(color.Bold, color.FgHiCyan).Sprintf(f, args...)
}

// Success renders a completed step.
func Success(f string, args ...interface{}) string {
	return color.New(color.FgGreen).Sprintf("✓ "+f, args...)
}

// Failure renders a failed step.
func Failure(f string, args ...interface{}) string {
	return color.New(color.FgRed, color.Bold).Sprintf(f, args...)
}
