// Package db holds the gorm models and database bootstrap for the chat
// subsystem and the renovation context it hangs off.
package db

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (or creates) the sqlite database at path and runs migrations.
func Open(path string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}

	return gdb, nil
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&User{},
		&Renovation{},
		&Room{},
		&Task{},
		&Expense{},
		&Channel{},
		&Message{},
		&Mention{},
		&Link{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// EnsureAssistantUser returns the synthetic AI identity, creating it on first
// call. All assistant replies are sent under this user.
func EnsureAssistantUser(gdb *gorm.DB) (*User, error) {
	var user User
	err := gdb.Where("is_assistant = ?", true).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = User{
		FirstName:   "Reno",
		LastName:    "Assistant",
		IsAssistant: true,
	}
	if err := gdb.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create assistant user: %w", err)
	}
	return &user, nil
}
