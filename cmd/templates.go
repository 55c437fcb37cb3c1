package cmd

import (
	"github.com/spf13/cobra"

	"github.com/revuedev/revue/internal/output"
	"github.com/revuedev/revue/internal/report"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List report templates",
	Long:  "List the report templates usable with 'revue report file --template'.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return templatesRun()
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}

func templatesRun() error {
	table := ui.Table([]string{"ID", "Name", "Description"})
	for _, info := range report.BuiltinTemplates().List() {
		table.Append([]string{output.Cyan(info.ID), info.Name, info.Description})
	}
	table.Render()
	return nil
}
