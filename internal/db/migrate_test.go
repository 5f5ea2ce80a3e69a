package db

import (
	"context"
	"path/filepath"
	"testing"

	"scout-portal/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrateAndSeed(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "seed.db")), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, Migrate(gdb))
	require.NoError(t, SeedData(context.Background(), gdb))
	// second run must be a no-op
	require.NoError(t, SeedData(context.Background(), gdb))

	var users []domain.User
	require.NoError(t, gdb.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, domain.RoleScouter, users[0].Role)

	assert.True(t, gdb.Migrator().HasIndex(&domain.UnlockRequest{}, "idx_unlock_one_pending"))
	assert.True(t, gdb.Migrator().HasIndex(&domain.DocumentSlot{}, "idx_slot_child_type"))
}
