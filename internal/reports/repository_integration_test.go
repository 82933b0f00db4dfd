//go:build integration

package reports

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgresmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"mercado/pkg/migrations"
	pkgerrors "mercado/pkg/errors"
)

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	container, err := postgresmodule.Run(ctx, "postgres:15",
		postgresmodule.WithDatabase("test_db"),
		postgresmodule.WithUsername("test_user"),
		postgresmodule.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	conn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", conn)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(pingCtx))

	require.NoError(t, migrations.UpPostgres(db))
	return db
}

func TestPostgresRepository(t *testing.T) {
	db := setupPostgres(t)
	repo := NewRepository(db)
	ctx := context.Background()

	t.Run("create is idempotent per envelope", func(t *testing.T) {
		in := NewReport{EnvelopeID: "env-1", Producto: "Leche", Supermercado: "Tienda A", Precio: 25.5}

		created, ok, err := repo.Create(ctx, in)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, StatusPending, created.Estado)
		assert.Equal(t, 25.5, created.PrecioEncontrado)
		assert.Equal(t, "", created.Descripcion)

		again, ok, err := repo.Create(ctx, in)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, created.ID, again.ID)
	})

	t.Run("list orders by state then newest", func(t *testing.T) {
		second, _, err := repo.Create(ctx, NewReport{EnvelopeID: "env-2", Producto: "Pan", Supermercado: "Tienda B", Precio: 3})
		require.NoError(t, err)
		third, _, err := repo.Create(ctx, NewReport{EnvelopeID: "env-3", Producto: "Arroz", Supermercado: "Tienda C", Precio: 9.9, Descripcion: "etiqueta"})
		require.NoError(t, err)
		_, err = repo.UpdateStatus(ctx, second.ID, StatusReviewing)
		require.NoError(t, err)

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, StatusReviewing, list[0].Estado)
		assert.Equal(t, third.ID, list[1].ID)
		assert.Equal(t, "etiqueta", list[1].Descripcion)
	})

	t.Run("get and update missing report", func(t *testing.T) {
		_, err := repo.Get(ctx, 9999)
		assert.True(t, pkgerrors.IsNotFound(err))

		_, err = repo.UpdateStatus(ctx, 9999, StatusResolved)
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("data exceptions are permanent", func(t *testing.T) {
		_, _, err := repo.Create(ctx, NewReport{EnvelopeID: "env-big", Producto: "Oro", Supermercado: "Joyeria", Precio: 1e12})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStoreRejected)
		assert.False(t, pkgerrors.IsRetryable(err))
	})
}
