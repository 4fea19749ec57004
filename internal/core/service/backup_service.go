package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

const backupFormatVersion = 1

var ErrBackupFormat = errors.New("unsupported backup format")

type backupDocument struct {
	Version    int              `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Whiskeys   []domain.Whiskey `json:"whiskeys"`
}

// BackupService copies the whole whiskey store to and from a blob store.
type BackupService struct {
	repo   *WhiskeyRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewBackupService(repo *WhiskeyRepository, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Export writes every whiskey to key and returns how many were written.
func (s *BackupService) Export(ctx context.Context, blobs port.BlobStore, key string) (int, error) {
	all, err := s.repo.GetAll(ctx).Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	doc := backupDocument{
		Version:    backupFormatVersion,
		ExportedAt: s.now(),
		Whiskeys:   all,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	if err := blobs.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return 0, fmt.Errorf("export to %s: %w", key, err)
	}

	s.logger.Info("Backup exported", zap.String("key", key), zap.Int("whiskeys", len(all)))
	return len(all), nil
}

// Import reads a backup from key and stores every whiskey in it. Existing
// records with the same id are replaced. The import is all or nothing.
func (s *BackupService) Import(ctx context.Context, blobs port.BlobStore, key string) (n int, err error) {
	rc, err := blobs.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("import from %s: %w", key, err)
	}
	defer func() {
		err = multierr.Append(err, rc.Close())
	}()

	var doc backupDocument
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return 0, fmt.Errorf("import from %s: %w: %v", key, ErrBackupFormat, err)
	}
	if doc.Version != backupFormatVersion {
		return 0, fmt.Errorf("import from %s: %w: version %d", key, ErrBackupFormat, doc.Version)
	}
	for i, w := range doc.Whiskeys {
		if err := w.Validate(); err != nil {
			return 0, fmt.Errorf("import from %s: record %d: %w", key, i, err)
		}
	}

	n, err = s.repo.PutAll(ctx, doc.Whiskeys).Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("import from %s: %w", key, err)
	}

	s.logger.Info("Backup imported", zap.String("key", key), zap.Int("whiskeys", n))
	return n, nil
}
