package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles_SortedAndEmbedded(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_notification_jobs.sql", files[0])
	for i := 1; i < len(files); i++ {
		assert.Less(t, files[i-1], files[i])
	}
}

func TestMigrations_CreateCoreTables(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)

	var all string
	for _, f := range files {
		b, err := migrationsFS.ReadFile("migrations/" + f)
		require.NoError(t, err)
		all += string(b)
	}
	for _, table := range []string{
		"notification_jobs",
		"notification_status_history",
		"notification_queue",
		"notification_dlq",
		"notification_templates",
		"in_app_notifications",
	} {
		assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS "+table)
	}
}
