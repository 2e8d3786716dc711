package app

import (
	"github.com/spf13/cobra"

	"github.com/pyrite-audit/pyrite/internal/cli"
)

func BuildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "pyrite",
		Short:         "Static analysis for Solidity parse trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cli.AddCommands(root)
	return root
}
