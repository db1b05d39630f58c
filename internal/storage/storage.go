package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

const (
	tableExtension = ".db"
	backupSuffix   = "_Backups"
	dirPerm        = 0o755
	filePerm       = 0o644
)

// Diagnostics is the context of the last storage operation. It is
// overwritten by every operation and never persisted.
type Diagnostics struct {
	Operation      string
	LastPath       string
	LastRaw        string
	DeletedBackups []string
}

// Storage is a file-backed table and blob store.
//
// All file access is serialised by a single mutex, which also makes a
// backup an exclusive checkpoint with respect to table and blob writes.
type Storage struct {
	mu sync.Mutex

	dataDir    string
	tablesDir  string
	blobsDir   string
	backupsDir string
	separator  string

	schemas map[string][]Column

	diagMu sync.Mutex
	diag   Diagnostics
}

// New creates an uninitialized Storage.
func New() *Storage {
	return &Storage{
		schemas: make(map[string][]Column),
	}
}

// Initialize creates (or validates) the directory layout. It is idempotent.
func (s *Storage) Initialize(dataDirectory string, separator rune, tablesFolderName, blobsFolderName string) error {
	if dataDirectory == "" {
		return fmt.Errorf("%w: empty data directory", ErrInvalidSchema)
	}
	if separator == '"' || separator == '\n' || separator == '\r' {
		return fmt.Errorf("%w: separator %q is not allowed", ErrInvalidSchema, separator)
	}
	if tablesFolderName == "" || blobsFolderName == "" || tablesFolderName == blobsFolderName {
		return fmt.Errorf("%w: tables folder %q and blobs folder %q must be distinct and non-empty",
			ErrInvalidSchema, tablesFolderName, blobsFolderName)
	}

	dataDir, err := filepath.Abs(dataDirectory)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dataDir = dataDir
	s.tablesDir = filepath.Join(dataDir, tablesFolderName)
	s.blobsDir = filepath.Join(dataDir, blobsFolderName)
	s.backupsDir = filepath.Clean(dataDir) + backupSuffix
	s.separator = string(separator)

	for _, dir := range []string{s.tablesDir, s.blobsDir, s.backupsDir} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return s.wrap("initialize", dir, "", err)
		}
	}

	logging.Debug("Storage initialized: data=%s tables=%s blobs=%s backups=%s",
		s.dataDir, s.tablesDir, s.blobsDir, s.backupsDir)
	return nil
}

// DataDirectory returns the absolute data directory.
func (s *Storage) DataDirectory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataDir
}

// BackupsDirectory returns the directory that receives backup archives.
func (s *Storage) BackupsDirectory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backupsDir
}

// Diagnostics returns a copy of the context of the last operation.
func (s *Storage) Diagnostics() Diagnostics {
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	d := s.diag
	d.DeletedBackups = append([]string(nil), s.diag.DeletedBackups...)
	return d
}

func (s *Storage) record(op, path, raw string) {
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	s.diag = Diagnostics{Operation: op, LastPath: path, LastRaw: truncateRaw(raw)}
}

// wrap builds an *Error from the current diagnostics. Callers hold s.mu.
func (s *Storage) wrap(op, path, raw string, err error) error {
	if path != "" || raw != "" {
		s.record(op, path, raw)
	}
	d := s.Diagnostics()
	return &Error{
		Op:        op,
		Directory: s.dataDir,
		Separator: s.separator,
		Path:      d.LastPath,
		Raw:       d.LastRaw,
		Err:       err,
	}
}

func (s *Storage) initialized() bool {
	return s.dataDir != ""
}

func (s *Storage) tablePath(tableName string) string {
	return filepath.Join(s.tablesDir, strings.ToLower(tableName)+tableExtension)
}

func (s *Storage) blobPath(blobName string) string {
	return filepath.Join(s.blobsDir, blobName)
}

// writeFileAtomic writes data to a temporary sibling and renames it over
// path, so readers never observe a half-written file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func observe(op string, start time.Time, err error) {
	metrics.ObserveStorage(op, time.Since(start).Seconds(), err)
}
