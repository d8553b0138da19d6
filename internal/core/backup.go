package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"schoolcore/internal/blob"
	"schoolcore/internal/integrity"
	"schoolcore/pkg/domain"
)

// BackupPrefix is the blob key prefix all backups are written under.
const BackupPrefix = "backups/"

// backupKeyLayout sorts lexically in time order.
const backupKeyLayout = "20060102T150405.000000000Z"

const entityBackup domain.EntityType = "backup"

// BackupKey returns the blob key a snapshot exported at ExportedAt is stored under.
func BackupKey(snapshot Snapshot) string {
	return BackupPrefix + snapshot.ExportedAt.UTC().Format(backupKeyLayout) + ".json"
}

// Backup writes the current directory as a JSON snapshot to store.
func (s *Service) Backup(ctx context.Context, store blob.Store) (blob.Info, error) {
	var info blob.Info
	err := s.run(ctx, "backup.create", func(ctx context.Context) error {
		var snapshot Snapshot
		if err := s.store.View(ctx, func(view TransactionView) error {
			snapshot = domain.SnapshotFromView(view, s.clock.Now())
			return nil
		}); err != nil {
			return err
		}
		payload, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		info, err = store.Put(ctx, BackupKey(snapshot), bytes.NewReader(payload), blob.PutOptions{
			ContentType: "application/json",
			Metadata: map[string]string{
				"snapshot-version": strconv.Itoa(snapshot.Version),
				"schools":          strconv.Itoa(len(snapshot.Schools)),
				"colleges":         strconv.Itoa(len(snapshot.Colleges)),
				"students":         strconv.Itoa(len(snapshot.Students)),
			},
		})
		if err != nil {
			return domain.StorageUnavailable("write backup", err)
		}
		return nil
	})
	return info, err
}

// Backups lists stored backups, oldest first.
func (s *Service) Backups(ctx context.Context, store blob.Store) ([]blob.Info, error) {
	var infos []blob.Info
	err := s.run(ctx, "backup.list", func(ctx context.Context) error {
		var err error
		infos, err = store.List(ctx, BackupPrefix)
		if err != nil {
			return domain.StorageUnavailable("list backups", err)
		}
		return nil
	})
	return infos, err
}

// Restore replaces the whole directory with the backup at key, or the latest
// backup when key is empty. The snapshot is checked by the integrity
// enforcer before the swap, and the swap is one transaction, so a broken
// snapshot leaves the directory as it was whatever rules are registered.
func (s *Service) Restore(ctx context.Context, store blob.Store, key string) (Snapshot, error) {
	var snapshot Snapshot
	err := s.run(ctx, "backup.restore", func(ctx context.Context) error {
		var err error
		snapshot, err = readBackup(ctx, store, key)
		if err != nil {
			return err
		}
		if err := integrity.ValidateSnapshot(snapshot); err != nil {
			return err
		}
		_, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return replaceAll(tx, snapshot)
		})
		return err
	})
	return snapshot, err
}

func readBackup(ctx context.Context, store blob.Store, key string) (Snapshot, error) {
	if key == "" {
		infos, err := store.List(ctx, BackupPrefix)
		if err != nil {
			return Snapshot{}, domain.StorageUnavailable("list backups", err)
		}
		if len(infos) == 0 {
			return Snapshot{}, domain.NotFound(entityBackup, BackupPrefix)
		}
		key = infos[len(infos)-1].Key
	}
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return Snapshot{}, domain.NotFound(entityBackup, key)
		}
		return Snapshot{}, domain.StorageUnavailable("read backup", err)
	}
	defer func() { _ = rc.Close() }()

	var snapshot Snapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return Snapshot{}, domain.InvalidInput(entityBackup, fmt.Sprintf("decode %s: %v", key, err))
	}
	if snapshot.Version != domain.SnapshotVersion {
		return Snapshot{}, domain.InvalidInput(entityBackup, fmt.Sprintf("unsupported snapshot version %d", snapshot.Version))
	}
	return snapshot, nil
}

// replaceAll empties the directory dependents first, then recreates the
// snapshot parents first.
func replaceAll(tx Transaction, snapshot Snapshot) error {
	view := tx.Snapshot()
	for _, student := range view.ListStudents() {
		if err := tx.DeleteStudent(student.ID); err != nil {
			return err
		}
	}
	for _, college := range view.ListColleges() {
		if err := tx.DeleteCollege(college.ID); err != nil {
			return err
		}
	}
	for _, school := range view.ListSchools() {
		if err := tx.DeleteSchool(school.ID); err != nil {
			return err
		}
	}
	for _, school := range snapshot.Schools {
		if _, err := tx.CreateSchool(school); err != nil {
			return err
		}
	}
	for _, college := range snapshot.Colleges {
		if _, err := tx.CreateCollege(college); err != nil {
			return err
		}
	}
	for _, student := range snapshot.Students {
		if _, err := tx.CreateStudent(student); err != nil {
			return err
		}
	}
	return nil
}
