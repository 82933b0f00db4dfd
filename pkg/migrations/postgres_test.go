package migrations

import (
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	files, err := fs.Glob(postgresFS, "postgres/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Zero(t, len(files)%2, "every up migration needs a down migration")

	source, err := iofs.New(postgresFS, "postgres")
	require.NoError(t, err)
	defer source.Close()

	first, err := source.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, identifier, err := source.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "create_reportes_inconsistencia", identifier)
}
