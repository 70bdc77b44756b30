package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the configured video providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		service, _, cleanup, err := buildService(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		providers := service.ListProviders()
		if len(providers) == 0 {
			fmt.Println("No providers configured. Add a providers section to vidtask.yaml.")
			return nil
		}

		for _, provider := range providers {
			model := provider.Model
			if model == "" {
				model = "-"
			}
			fmt.Printf("- %s  model=%s  base_url=%s\n", provider.ProviderID, model, provider.BaseURL)
		}
		return nil
	},
}
