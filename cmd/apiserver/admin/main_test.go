package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"social-go/internal/config"
	"social-go/internal/models"
	"social-go/internal/services"
	"social-go/internal/storage"
	"social-go/internal/testutil"
)

// writeConfig points the CLI at a sqlite file and a media store under dir.
func writeConfig(t *testing.T, dir string) (string, config.DatabaseConfig) {
	t.Helper()
	dbCfg := config.DatabaseConfig{Type: "sqlite", DBName: filepath.Join(dir, "admin.db"), LogLevel: "silent"}
	yaml := "DATABASE:\n" +
		"  TYPE: sqlite\n" +
		"  DB_NAME: " + dbCfg.DBName + "\n" +
		"  LOG_LEVEL: silent\n" +
		"STORAGE:\n" +
		"  BASE_DIR: " + dir + "\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path, dbCfg
}

func openDB(t *testing.T, cfg config.DatabaseConfig) *gorm.DB {
	t.Helper()
	db, err := storage.InitDB(cfg)
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrateTables(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScanPrintsResolvedPaths(t *testing.T) {
	dir := t.TempDir()
	cfgPath, _ := writeConfig(t, dir)

	out, err := execute(t, "", "--config", cfgPath, "scan",
		`<img src="/uploads/a.png"><video src="/media/b.mp4"></video><img src="/uploads/../app.db">`)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "uploads", "a.png")+"\n"+filepath.Join(dir, "media", "b.mp4")+"\n", out)
}

func TestScanReadsStdin(t *testing.T) {
	dir := t.TempDir()
	cfgPath, _ := writeConfig(t, dir)

	out, err := execute(t, `<p>text only</p><img src="/media/c.png">`, "--config", cfgPath, "scan")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "media", "c.png")+"\n", out)

	out, err = execute(t, "no media here", "--config", cfgPath, "scan")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDeleteUserCascades(t *testing.T) {
	dir := t.TempDir()
	cfgPath, dbCfg := writeConfig(t, dir)

	db := openDB(t, dbCfg)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	testutil.CreateUser(t, db, "admin")
	require.NoError(t, db.Create(&models.Post{AuthorID: alice.ID, Body: `<img src="/uploads/a.png">`}).Error)
	require.NoError(t, db.Create(&models.DirectMessage{SenderID: bob.ID, RecipientID: alice.ID, Body: "hi"}).Error)
	file := filepath.Join(dir, "uploads", "a.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("png"), 0o600))

	out, err := execute(t, "", "--config", cfgPath, "delete-user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "已删除用户 alice")
	assert.Contains(t, out, "文件: 删除 1, 保留 0, 失败 0")

	_, statErr := os.Stat(file)
	assert.True(t, os.IsNotExist(statErr))

	var n int64
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "alice").Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.DirectMessage{}).Count(&n).Error)
	assert.Zero(t, n)

	_, err = execute(t, "", "--config", cfgPath, "delete-user", "admin")
	assert.ErrorIs(t, err, services.ErrProtectedIdentity)

	_, err = execute(t, "", "--config", cfgPath, "delete-user", "alice")
	assert.ErrorIs(t, err, services.ErrNotFound)
}
