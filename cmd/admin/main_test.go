package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"scout-portal/internal/config"
	"scout-portal/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func sqliteOpener(t *testing.T) (opener, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "admin.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return func() (*gorm.DB, func(), error) { return gdb, func() {}, nil }, gdb
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := rootCommand(config.Config{}, open)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAdminCommands(t *testing.T) {
	open, gdb := sqliteOpener(t)

	_, err := run(t, open, "migrate", "--seed")
	require.NoError(t, err)

	out, err := run(t, open, "create-user", "--name=Marta", "--email=marta@example.com", "--password=secret123", "--role=guardian")
	require.NoError(t, err)
	assert.Contains(t, out, "created guardian marta@example.com")

	_, err = run(t, open, "create-user", "--email=x@example.com", "--password=secret123", "--role=root")
	assert.Error(t, err)

	kid := &domain.Child{FirstName: "Lucas", LastName: "Perez"}
	require.NoError(t, gdb.Create(kid).Error)

	var guardian domain.User
	require.NoError(t, gdb.Where("email = ?", "marta@example.com").First(&guardian).Error)

	out, err = run(t, open, "link-guardian", "--child=1", "--guardian=2", "--relation=mother")
	require.NoError(t, err)
	assert.Contains(t, out, "linked guardian 2 to child 1")
	assert.Equal(t, uint64(2), guardian.ID, "seeded scouter takes the first id")
}

func TestNotifyTest_RequiresChannel(t *testing.T) {
	open, _ := sqliteOpener(t)

	_, err := run(t, open, "notify-test")
	assert.Error(t, err)

	out, err := run(t, open, "notify-test", "--url=logger://")
	require.NoError(t, err)
	assert.Contains(t, out, "sent via shoutrrr")
}
