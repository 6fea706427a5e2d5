// Package databasetest opens migrated in-memory SQLite databases for tests.
package databasetest

import (
	"strings"
	"testing"

	gormlogger "gorm.io/gorm/logger"

	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database"
	_ "github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/dbschema"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/database/transaction"
)

// Open returns a fresh database private to t, closed when the test ends.
func Open(t testing.TB) *transaction.Database {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(database.Config{
		DatabaseURL: "sqlite://file:" + name + "?mode=memory&cache=shared",
		LogLevel:    gormlogger.Silent,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.Migrate(db, "test"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return transaction.NewDatabase(db)
}
