// Package testutil builds throwaway stores for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"social-go/internal/config"
	"social-go/internal/models"
	"social-go/internal/storage"
)

// NewTestDB opens a migrated in-memory SQLite database that lives for the test.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := storage.InitDB(config.DatabaseConfig{Type: "sqlite", DBName: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrateTables(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a public user with a placeholder credential hash.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{Username: username, PasswordHash: "x", Visibility: models.VisibilityPublic}
	require.NoError(t, db.Create(user).Error)
	return user
}
