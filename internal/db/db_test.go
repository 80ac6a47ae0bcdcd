package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ai-studio/internal/models"
)

func TestDialectorByDSN(t *testing.T) {
	require.Equal(t, "postgres", Dialector("postgres://u:p@localhost/db").Name())
	require.Equal(t, "postgres", Dialector("postgresql://u:p@localhost/db").Name())
	require.Equal(t, "sqlite", Dialector("sqlite:file::memory:").Name())
	require.Equal(t, "mysql", Dialector("app:apppass@tcp(127.0.0.1:3306)/ai_studio").Name())
}

func TestConnectAndMigrateSQLite(t *testing.T) {
	gdb, err := Connect("sqlite:file:dbtest?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	u := &models.User{Email: "a@example.com"}
	require.NoError(t, gdb.Create(u).Error)
	require.NotZero(t, u.ID)
}
