package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/studygen/internal/domain/jobs"
	"github.com/yungbote/studygen/internal/platform/logger"
)

type Config struct {
	// DatabaseURL selects postgres when set.
	DatabaseURL string
	// SQLitePath is used when DatabaseURL is empty.
	SQLitePath string
	LogLevel   gormLogger.LogLevel
}

// Service owns the dev server's gorm connection.
type Service struct {
	db      *gorm.DB
	log     *logger.Logger
	dialect string
}

func NewService(logg *logger.Logger, cfg Config) (*Service, error) {
	serviceLog := logg.With("service", "DBService")

	level := cfg.LogLevel
	if level == 0 {
		level = gormLogger.Warn
	}
	gormLog := gormLogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gcfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	var (
		dialector gorm.Dialector
		dialect   string
	)
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		dialector, dialect = postgres.Open(dsn), "postgres"
	} else {
		path := strings.TrimSpace(cfg.SQLitePath)
		if path == "" {
			path = "studygen.db"
		}
		dialector, dialect = sqlite.Open(path), "sqlite"
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}
	if dialect == "sqlite" {
		// one writer: the simulator and handlers share the file
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	serviceLog.Info("Database connected", "dialect", dialect)
	return &Service{db: db, log: serviceLog, dialect: dialect}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Dialect() string { return s.dialect }

func (s *Service) AutoMigrate() error {
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}

// Ping checks the underlying connection.
func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&jobs.Job{},
	)
}
