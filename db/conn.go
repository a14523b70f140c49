// Package db opens the backing database and keeps the schema current
package db

import (
	"fmt"
	"krisbot/chat-api/internal/model"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New opens a connection based on db.url. A postgres DSN selects the
// postgres driver, anything else falls back to a local SQLite file named
// after db.name. The returned handle is passed down explicitly and closed
// by the caller on shutdown.
func New() (*gorm.DB, error) {
	var dial gorm.Dialector

	if dsn := viper.GetString("db.url"); dsn != "" {
		dial = postgres.Open(dsn)
	} else {
		dial = sqlite.Open(viper.GetString("db.name") + ".db")
	}

	conn, err := gorm.Open(dial)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	err = conn.AutoMigrate(model.User{}, model.Conversation{}, model.Message{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return conn, nil
}

// Close releases the underlying connection pool.
func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
