package db

import (
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlite leaves foreign keys off per connection unless asked.
const connPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// NewDatabase opens the inventory database and initializes its schema.
func NewDatabase(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(withPragmas(dsn)), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(zap.NewStdLog(logger), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}

	// sqlite has a single writer; transactions are serialized on one connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	logger.Info("initializing database schema", zap.String("dsn", dsn))
	if err := InitSchema(db); err != nil {
		return nil, err
	}

	logger.Info("database connection established")
	return db, nil
}

// InitSchema creates the client, computer and port relations. It is idempotent.
func InitSchema(db *gorm.DB) error {
	return db.AutoMigrate(
		&Client{},
		&Computer{},
		&Port{},
	)
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + connPragmas
	}
	return dsn + "?" + connPragmas
}
