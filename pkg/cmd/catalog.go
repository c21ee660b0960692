package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/ingestvault/pkg/internal/catalog"
)

var (
	catalogCmd = &cobra.Command{
		Use:   "catalog",
		Short: "Catalog store related commands",
	}

	catalogListCmd = &cobra.Command{
		Use:     "ls",
		Short:   "list all registered catalog store types",
		Aliases: []string{"list", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered catalog types:")
			for _, t := range catalog.GetRegisteredStoreTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), " - "+string(t))
			}
		},
	}
)

// registerCatalogCommands 注册目录存储相关命令.
func registerCatalogCommands() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd)
}
