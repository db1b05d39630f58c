package storage

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

const backupDateLayout = "20060102"

var backupNamePattern = regexp.MustCompile(`^\d{8}\.zip$`)

// BackupFileName returns the archive name used for a given day.
func BackupFileName(date time.Time) string {
	return date.Format(backupDateLayout) + ".zip"
}

// BackupExists reports whether a backup archive exists for date.
func (s *Storage) BackupExists(date time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized() {
		return false
	}
	_, err := os.Stat(filepath.Join(s.backupsDir, BackupFileName(date)))
	return err == nil
}

// WriteBackup stores an uncompressed zip of the whole data directory as the
// backup for date, replacing any existing backup for that day. Table and
// blob writes are blocked while the archive is produced.
func (s *Storage) WriteBackup(date time.Time) (written bool, err error) {
	start := time.Now()
	defer func() { observe("write_backup", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized() {
		return false, ErrNotInitialized
	}

	target := filepath.Join(s.backupsDir, BackupFileName(date))
	s.record("write_backup", target, "")

	// The archive is built beside the old one and renamed over it.
	tmp, err := os.CreateTemp(s.backupsDir, ".backup-*.tmp")
	if err != nil {
		return false, s.wrap("write_backup", target, "", err)
	}
	tmpName := tmp.Name()

	if err := s.zipDataDir(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return false, s.wrap("write_backup", target, "", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, s.wrap("write_backup", target, "", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return false, s.wrap("write_backup", target, "", err)
	}

	metrics.BackupsWrittenTotal.Inc()
	logging.Info("Backup written: %s", target)
	return true, nil
}

func (s *Storage) zipDataDir(w io.Writer) error {
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(s.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == s.dataDir {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".tmp") {
			return nil
		}

		rel, err := filepath.Rel(s.dataDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			_, err := zw.CreateHeader(&zip.FileHeader{Name: name + "/", Method: zip.Store})
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = name
		header.Method = zip.Store

		entry, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(entry, f)
		f.Close()
		return err
	})
	if err != nil {
		zw.Close()
		return err
	}

	return zw.Close()
}

// DeleteOldBackups keeps the newest keepCount backups and removes the rest.
// Backup names sort chronologically. The removed paths are returned and
// recorded in Diagnostics.
func (s *Storage) DeleteOldBackups(keepCount int) (deleted []string, err error) {
	start := time.Now()
	defer func() { observe("delete_old_backups", start, err) }()

	if keepCount < 0 {
		return nil, fmt.Errorf("%w: negative backup keep count %d", ErrInvalidSchema, keepCount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized() {
		return nil, ErrNotInitialized
	}

	entries, err := os.ReadDir(s.backupsDir)
	if err != nil {
		return nil, s.wrap("delete_old_backups", s.backupsDir, "", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && backupNamePattern.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) <= keepCount {
		s.setDeletedBackups(nil)
		return nil, nil
	}

	for _, name := range names[:len(names)-keepCount] {
		path := filepath.Join(s.backupsDir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.setDeletedBackups(deleted)
			return deleted, s.wrap("delete_old_backups", path, "", err)
		}
		deleted = append(deleted, path)
		metrics.BackupsDeletedTotal.Inc()
		logging.Debug("Deleted old backup: %s", path)
	}

	s.setDeletedBackups(deleted)
	return deleted, nil
}

func (s *Storage) setDeletedBackups(paths []string) {
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	s.diag.Operation = "delete_old_backups"
	s.diag.DeletedBackups = append([]string(nil), paths...)
}
