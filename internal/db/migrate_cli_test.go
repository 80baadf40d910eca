package db

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrateCommand(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	defer database.Close()

	var out bytes.Buffer
	require.NoError(t, RunMigrateCommand([]string{"status"}, database, &out))
	assert.Contains(t, out.String(), "Current version: 0")
	assert.Contains(t, out.String(), "1 migration(s) pending")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"up"}, database, &out))
	assert.Contains(t, out.String(), "Current version: 1")
	assert.NotContains(t, out.String(), "pending")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"down"}, database, &out))
	assert.Contains(t, out.String(), "Current version: 0")

	out.Reset()
	assert.Error(t, RunMigrateCommand(nil, database, &out))
	assert.Contains(t, out.String(), "Usage: overflight migrate")

	assert.Error(t, RunMigrateCommand([]string{"sideways"}, database, &out))
	assert.NoError(t, RunMigrateCommand([]string{"help"}, database, &out))
}
