package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"
)

func validBlobName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}

// ReadBlob loads a blob. The boolean is false when the blob does not exist.
func (s *Storage) ReadBlob(blobName string) (blob map[string][]byte, found bool, err error) {
	start := time.Now()
	defer func() { observe("read_blob", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized() {
		return nil, false, ErrNotInitialized
	}
	if err := validBlobName(blobName); err != nil {
		return nil, false, s.wrap("read_blob", blobName, "", err)
	}

	path := s.blobPath(blobName)
	s.record("read_blob", path, "")

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap("read_blob", path, "", err)
	}

	blob, err = decodeBlob(data)
	if err != nil {
		return nil, false, s.wrap("read_blob", path, "", err)
	}
	return blob, true, nil
}

// WriteBlob replaces a blob with the given entries. Keys are written in
// sorted order so identical maps produce identical files.
func (s *Storage) WriteBlob(blobName string, blob map[string][]byte) (err error) {
	start := time.Now()
	defer func() { observe("write_blob", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized() {
		return ErrNotInitialized
	}
	if err := validBlobName(blobName); err != nil {
		return s.wrap("write_blob", blobName, "", err)
	}

	path := s.blobPath(blobName)
	s.record("write_blob", path, "")

	data, err := encodeBlob(blob)
	if err != nil {
		return s.wrap("write_blob", path, "", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return s.wrap("write_blob", path, "", err)
	}
	return nil
}

// BlobExists reports whether a blob file is present.
func (s *Storage) BlobExists(blobName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized() || validBlobName(blobName) != nil {
		return false
	}
	info, err := os.Stat(s.blobPath(blobName))
	return err == nil && info.Mode().IsRegular()
}

// DeleteBlob removes a blob. Deleting a missing blob is not an error.
func (s *Storage) DeleteBlob(blobName string) (err error) {
	start := time.Now()
	defer func() { observe("delete_blob", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized() {
		return ErrNotInitialized
	}
	if err := validBlobName(blobName); err != nil {
		return s.wrap("delete_blob", blobName, "", err)
	}

	path := s.blobPath(blobName)
	s.record("delete_blob", path, "")
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return s.wrap("delete_blob", path, "", err)
	}
	return nil
}

func encodeBlob(blob map[string][]byte) ([]byte, error) {
	if len(blob) > math.MaxInt32 {
		return nil, fmt.Errorf("too many blob entries: %d", len(blob))
	}

	keys := make([]string, 0, len(blob))
	for k := range blob {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var scratch [binary.MaxVarintLen64]byte

	binary.Write(&buf, binary.LittleEndian, int32(len(keys)))
	for _, k := range keys {
		v := blob[k]
		if len(v) > math.MaxInt32 {
			return nil, fmt.Errorf("blob entry %q too large: %d bytes", k, len(v))
		}
		n := binary.PutUvarint(scratch[:], uint64(len(k)))
		buf.Write(scratch[:n])
		buf.WriteString(k)
		binary.Write(&buf, binary.LittleEndian, int32(len(v)))
		buf.Write(v)
	}
	return buf.Bytes(), nil
}

func decodeBlob(data []byte) (map[string][]byte, error) {
	r := bytes.NewReader(data)

	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read entry count: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("negative entry count %d", count)
	}

	blob := make(map[string][]byte, min(int(count), 1024))
	for i := int32(0); i < count; i++ {
		keyLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d: read key length: %w", i, err)
		}
		if keyLen > uint64(r.Len()) {
			return nil, fmt.Errorf("entry %d: key length %d exceeds remaining data", i, keyLen)
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("entry %d: read key: %w", i, err)
		}

		var size int32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("entry %d: read data length: %w", i, err)
		}
		if size < 0 || int64(size) > int64(r.Len()) {
			return nil, fmt.Errorf("entry %d: invalid data length %d", i, size)
		}
		value := make([]byte, size)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, fmt.Errorf("entry %d: read data: %w", i, err)
		}
		blob[string(key)] = value
	}

	return blob, nil
}
