package database

import (
	"context"
	"testing"

	"guestbook/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig() *config.Config {
	return &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		DBSQLitePath: ":memory:",
	}
}

func TestConnect_SQLiteAppliesSchemaOutsideProduction(t *testing.T) {
	cfg := sqliteConfig()

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	assert.True(t, db.Migrator().HasTable("comments"))
	assert.True(t, db.Migrator().HasTable("conferences"))
	assert.Same(t, db, DB)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestConnectWithOptions_SkipsSchema(t *testing.T) {
	db, err := ConnectWithOptions(sqliteConfig(), ConnectOptions{ApplySchema: false})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	status, err := GetSchemaStatus(context.Background(), db, sqliteConfig())
	require.NoError(t, err)
	assert.True(t, status.Pending())
	require.Len(t, status.Tables, len(PersistentModels()))
	for _, table := range status.Tables {
		assert.False(t, table.Exists, table.Table)
	}

	require.NoError(t, ApplySchema(context.Background(), db, sqliteConfig()))

	status, err = GetSchemaStatus(context.Background(), db, sqliteConfig())
	require.NoError(t, err)
	assert.False(t, status.Pending())
	assert.Equal(t, "conferences", status.Tables[0].Table)
	assert.Equal(t, "Comment", status.Tables[1].Model)
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}
