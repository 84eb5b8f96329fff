package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/campuspass/access-server-go/internal/model"
	"github.com/campuspass/access-server-go/internal/util"
)

// setupTestDB connects to the database named by TEST_DATABASE_URL and
// rebuilds the schema from the migration file. Tests are skipped when the
// variable is unset so the suite stays runnable without Postgres.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping repository tests")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_init.sql"))
	require.NoError(t, err)

	db.MustExec(`DROP TABLE IF EXISTS gate_credentials, access_sessions, operators, vehicles, identities CASCADE`)
	db.MustExec(string(schema))

	return db
}

func seedIdentity(t *testing.T, db *sqlx.DB, role model.IdentityRole, presence model.PresenceState) string {
	t.Helper()

	var id string
	err := db.Get(&id, `
		INSERT INTO identities (document, full_name, role, presence)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, "doc-"+util.HashToken(t.Name()+time.Now().String())[:12], "Test Person", role, presence)
	require.NoError(t, err)
	return id
}

func seedOperator(t *testing.T, db *sqlx.DB) string {
	t.Helper()

	var id string
	err := db.Get(&id, `
		INSERT INTO operators (name, token_hash)
		VALUES ($1, $2)
		RETURNING id
	`, "Test Gate", util.HashToken(t.Name()+time.Now().String()))
	require.NoError(t, err)
	return id
}

func seedVehicle(t *testing.T, db *sqlx.DB, ownerID string) string {
	t.Helper()

	var id string
	err := db.Get(&id, `
		INSERT INTO vehicles (owner_id, plate)
		VALUES ($1, $2)
		RETURNING id
	`, ownerID, "PLT-"+util.HashToken(t.Name()+time.Now().String())[:8])
	require.NoError(t, err)
	return id
}

func openSession(t *testing.T, repo SessionRepository, identityID, operatorID string, enteredAt time.Time) *model.AccessSession {
	t.Helper()

	session, err := repo.Create(context.Background(), model.CreateSessionParams{
		IdentityID:       identityID,
		OperatorID:       operatorID,
		EnteredAt:        enteredAt,
		EnteredTimeOfDay: enteredAt.Format("15:04:05"),
	})
	require.NoError(t, err)
	return session
}
