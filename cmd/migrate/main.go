package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"weaponwatch/internal/repository/sqlite"
)

// legacySubscriptions is the file the Telegram bot kept its chat ids in.
type legacySubscriptions struct {
	Subscriptions []interface{} `json:"subscriptions"`
}

func main() {
	if err := newMigrateCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newMigrateCommand() *cobra.Command {
	var (
		file   string
		dbPath string
	)

	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Import legacy Telegram subscriptions into the destination table",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd, file, dbPath)
		},
	}
	cmd.Flags().StringVar(&file, "file", "telegram_subscriptions.json", "legacy subscriptions file")
	cmd.Flags().StringVar(&dbPath, "db", "incidents.db", "database path")
	return cmd
}

func migrate(cmd *cobra.Command, file, dbPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Migrating subscriptions from %s to database %s\n", file, dbPath)

	ids, err := readSubscriptions(file)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No subscriptions found to migrate")
		return nil
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlite.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := sqlite.NewDestinationRepository(db)
	ctx := cmd.Context()

	before, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := repo.Add(ctx, id); err != nil {
			return fmt.Errorf("failed to add subscriber %s: %w", id, err)
		}
	}
	after, err := repo.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Imported %d new subscribers (%d total)\n", after-before, after)
	if skipped := len(ids) - (after - before); skipped > 0 {
		fmt.Fprintf(out, "⚠️  Skipped %d already known subscribers\n", skipped)
	}
	return nil
}

// readSubscriptions accepts chat ids written either as numbers or as strings.
func readSubscriptions(file string) ([]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriptions file: %w", err)
	}

	var raw legacySubscriptions
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse subscriptions file: %w", err)
	}

	ids := make([]string, 0, len(raw.Subscriptions))
	for _, v := range raw.Subscriptions {
		switch id := v.(type) {
		case json.Number:
			ids = append(ids, id.String())
		case string:
			if id != "" {
				ids = append(ids, id)
			}
		default:
			return nil, fmt.Errorf("unexpected subscription entry %v", v)
		}
	}
	return ids, nil
}
