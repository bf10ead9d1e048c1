package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"notification-relay/internal/config"
	"notification-relay/internal/logging"

	"github.com/rs/zerolog"
)

// BackupService periodically snapshots the SQLite task/log store. It is a
// no-op on the PostgreSQL backend, whose operators are expected to run
// their own backup tooling.
type BackupService struct {
	dbPath string
	driver string
	cfg    config.BackupConfig
	logger zerolog.Logger
}

// NewBackupService constructs a backup service for the given database config.
func NewBackupService(dbCfg config.DatabaseConfig, cfg config.BackupConfig, logger zerolog.Logger) *BackupService {
	return &BackupService{
		dbPath: dbCfg.Path,
		driver: dbCfg.Driver,
		cfg:    cfg,
		logger: logging.Component(logger, "backup"),
	}
}

// Start runs the backup loop until ctx is cancelled. Safe to run as a
// background goroutine.
func (b *BackupService) Start(ctx context.Context) {
	if !b.cfg.Enabled {
		return
	}
	if b.driver == "postgres" {
		b.logger.Info().Msg("backup service is a no-op on the postgres backend")
		return
	}

	if err := b.PerformBackup(); err != nil {
		b.logger.Error().Err(err).Msg("initial backup failed")
	}
	if err := b.CleanupOldBackups(); err != nil {
		b.logger.Error().Err(err).Msg("initial backup cleanup failed")
	}

	ticker := time.NewTicker(b.cfg.Interval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.PerformBackup(); err != nil {
				b.logger.Error().Err(err).Msg("backup failed")
			}
			if err := b.CleanupOldBackups(); err != nil {
				b.logger.Error().Err(err).Msg("backup cleanup failed")
			}
		}
	}
}

// PerformBackup snapshots the SQLite database file via VACUUM INTO,
// falling back to a plain file copy if that's unavailable.
func (b *BackupService) PerformBackup() error {
	if err := os.MkdirAll(b.cfg.StoragePath, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	dest := filepath.Join(b.cfg.StoragePath, fmt.Sprintf("relay-%s.db", time.Now().Format("20060102-150405")))

	db, err := NewSQLiteStore(b.dbPath)
	if err != nil {
		return fmt.Errorf("open source database for backup: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		b.logger.Warn().Err(err).Msg("VACUUM INTO failed, falling back to file copy")
		return b.copyFile(dest)
	}

	b.logger.Info().Str("path", dest).Msg("backup written")
	return nil
}

func (b *BackupService) copyFile(dest string) error {
	src, err := os.Open(b.dbPath)
	if err != nil {
		return fmt.Errorf("open database file for copy: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copy database file: %w", err)
	}

	b.logger.Info().Str("path", dest).Msg("backup written via file copy")
	return nil
}

// CleanupOldBackups removes backup files older than the retention window.
func (b *BackupService) CleanupOldBackups() error {
	entries, err := os.ReadDir(b.cfg.StoragePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -b.cfg.RetentionDays)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(b.cfg.StoragePath, entry.Name())
			if err := os.Remove(path); err != nil {
				b.logger.Warn().Err(err).Str("path", path).Msg("failed to remove old backup")
			}
		}
	}
	return nil
}
