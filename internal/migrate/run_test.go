package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedVersionsSorted(t *testing.T) {
	versions, err := embeddedVersions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "0001_export_runs", versions[0])
	assert.IsNonDecreasing(t, versions)
}

func TestEmbeddedMigrationsCreateExportRuns(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/0001_export_runs.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS export_runs")
}
