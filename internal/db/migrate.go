package db

import (
	"context"
	"errors"
	"fmt"

	"scout-portal/internal/domain"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.User{},
		&domain.Child{},
		&domain.Guardianship{},
		&domain.DocumentSlot{},
		&domain.DocumentRevision{},
		&domain.UnlockRequest{},
	)
	if err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	log.Info().Msg("database schema migrated successfully")
	return nil
}

// SeedData creates a reviewer account for local development.
func SeedData(ctx context.Context, db *gorm.DB) error {
	const email = "kraal@example.com"

	var existing domain.User
	err := db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		log.Info().Str("email", email).Msg("seed scouter already exists")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	scouter := &domain.User{
		Name:         "Kraal Reviewer",
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleScouter,
		IsActive:     true,
	}
	if err := db.WithContext(ctx).Create(scouter).Error; err != nil {
		return err
	}
	log.Info().Str("email", email).Msg("created seed scouter")
	return nil
}
