package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pet-food-safety/internal/infrastructure/database"
)

var (
	seedDriver string
	seedDSN    string
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Import a food catalog into the database",
	Long:  "Validates every record in the YAML catalog and upserts them. Nothing is written if any record is invalid.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedDriver, "driver", "", "database driver: sqlite or postgres (default from config)")
	seedCmd.Flags().StringVar(&seedDSN, "dsn", "", "database DSN (default from DATABASE_DSN)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	driver, dsn := cfg.Database.Driver, cfg.Database.DSN
	if seedDriver != "" {
		driver = seedDriver
	}
	if seedDSN != "" {
		dsn = seedDSN
	}

	records, err := database.LoadSeedFile(args[0])
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, driver, dsn, cfg.Database.MaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, driver); err != nil {
		return err
	}

	n, err := database.Seed(ctx, database.NewFoodRepository(db, driver), records)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"imported": n})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d food records.\n", n)
	return nil
}
