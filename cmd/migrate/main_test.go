package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weaponwatch/internal/repository/sqlite"
)

func TestMigrate_ImportsAndSkipsDuplicates(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "telegram_subscriptions.json")
	dbPath := filepath.Join(dir, "data", "incidents.db")
	require.NoError(t, os.WriteFile(file, []byte(`{"subscriptions": [1001, "-100200300", 1001]}`), 0644))

	var out bytes.Buffer
	cmd := newMigrateCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--file", file, "--db", dbPath})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "Imported 2 new subscribers")

	db, err := sqlite.New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	ids, err := sqlite.NewDestinationRepository(db).List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1001", "-100200300"}, ids)
}

func TestReadSubscriptions_Invalid(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"subscriptions": [true]}`), 0644))
	_, err := readSubscriptions(file)
	assert.Error(t, err)

	_, err = readSubscriptions(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
