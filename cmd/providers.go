package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/revuedev/revue/internal/output"
	"github.com/revuedev/revue/internal/provider"
)

var providersCheck bool

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List analysis providers",
	Long: `List the registered analysis providers. The active one is chosen by
provider.name (or --provider). With --check each provider is instantiated
with the current configuration and asked to validate itself.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return providersRun(cmd.Context())
	},
}

func init() {
	providersCmd.Flags().BoolVar(&providersCheck, "check", false, "Validate each provider with the current configuration")
	rootCmd.AddCommand(providersCmd)
}

func providersRun(ctx context.Context) error {
	registry := provider.Builtin()
	active := viper.GetString("provider.name")

	headers := []string{"Name", "Active"}
	if providersCheck {
		headers = append(headers, "Configured")
	}
	table := ui.Table(headers)

	for _, name := range registry.Names() {
		activeMark := ""
		if strings.EqualFold(name, active) {
			activeMark = output.Green("*")
		}
		row := []string{output.Cyan(name), activeMark}

		if providersCheck {
			row = append(row, checkProvider(ctx, registry, name))
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

// checkProvider instantiates one provider with the current config and runs
// its validation under a short timeout.
func checkProvider(ctx context.Context, registry *provider.Registry, name string) string {
	p, err := registry.Create(name, provider.Config{
		APIKey: providerAPIKey(),
		Model:  viper.GetString("provider.model"),
	})
	if err != nil {
		return output.Red("✗ " + err.Error())
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if !p.ValidateConfiguration(checkCtx) {
		return output.Red("✗")
	}
	return output.Green("✓")
}
