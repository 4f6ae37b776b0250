package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/chinni-d/Multi-Model-AI-Chatbot/internal/usage"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks a gorm driver from the DSN shape:
// postgres:// or postgresql:// -> postgres, file: or *.db -> sqlite, otherwise mysql.
func Dialector(dsn string) (gorm.Dialector, string) {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return postgres.Open(dsn), "postgres"
	case strings.HasPrefix(lower, "file:"), strings.HasSuffix(lower, ".db"), lower == ":memory:":
		return gormsqlite.Open(dsn), "sqlite"
	default:
		return mysql.Open(dsn), "mysql"
	}
}

// Open connects and migrates the counter table.
func Open(dsn string) (*gorm.DB, error) {
	dialector, driver := Dialector(dsn)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver != "sqlite" {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	log.Printf("[DB] connected driver=%s", driver)
	return gdb, nil
}

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&usage.Counter{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// Connect is Open for process entrypoints: any failure is fatal.
func Connect(dsn string) *gorm.DB {
	gdb, err := Open(dsn)
	if err != nil {
		log.Fatalf("[DB] %v", err)
	}
	return gdb
}
