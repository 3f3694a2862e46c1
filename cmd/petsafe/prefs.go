package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show saved preferences",
	Args:  cobra.NoArgs,
	RunE:  runPrefs,
}

func runPrefs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	p := c.Preferences()
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), p)
	}

	pet, food := string(p.PetType), p.LastFood
	if pet == "" {
		pet = "-"
	}
	if food == "" {
		food = "-"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pet type:  %s\nLast food: %s\n", pet, food)
	return nil
}
