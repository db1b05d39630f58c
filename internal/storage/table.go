package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// maxLineSize bounds a single table row.
const maxLineSize = 16 * 1024 * 1024

// Column describes one column of a table.
type Column struct {
	Name    string
	Escaped bool
}

// SetTableSchema registers the columns of a table. It must be called before
// the table is read or written.
func (s *Storage) SetTableSchema(tableName string, columns []Column) error {
	if strings.TrimSpace(tableName) == "" {
		return fmt.Errorf("%w: blank table name", ErrInvalidSchema)
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: table %s has no columns", ErrInvalidSchema, tableName)
	}

	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("%w: table %s column %d has a blank name", ErrInvalidSchema, tableName, i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("%w: table %s repeats column %q", ErrInvalidSchema, tableName, c.Name)
		}
		seen[key] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[strings.ToLower(tableName)] = append([]Column(nil), columns...)
	return nil
}

func (s *Storage) schema(tableName string) ([]Column, error) {
	columns, ok := s.schemas[strings.ToLower(tableName)]
	if !ok {
		return nil, fmt.Errorf("%w: no schema registered for table %s", ErrInvalidSchema, tableName)
	}
	return columns, nil
}

// ReadTable reads every row of a table and maps it with parse. Rows are
// returned in file order. A missing table file yields an empty result.
func ReadTable[T any](s *Storage, tableName string, parse func(fields []string) (T, error)) (rows []T, err error) {
	start := time.Now()
	defer func() { observe("read_table", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized() {
		return nil, ErrNotInitialized
	}
	columns, err := s.schema(tableName)
	if err != nil {
		return nil, err
	}

	path := s.tablePath(tableName)
	s.record("read_table", path, "")

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, s.wrap("read_table", path, "", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	rows = []T{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		fields, err := splitLine(line, s.separator, columns)
		if err != nil {
			return nil, s.wrap("read_table", path, line, fmt.Errorf("line %d: %w", lineNo, err))
		}
		row, err := parse(fields)
		if err != nil {
			return nil, s.wrap("read_table", path, line, fmt.Errorf("line %d: %w", lineNo, err))
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, s.wrap("read_table", path, "", err)
	}

	return rows, nil
}

// WriteTable replaces the content of a table with rows. field returns the
// value of column i for a row.
func WriteTable[T any](s *Storage, tableName string, rows []T, field func(row T, column int) string) (err error) {
	start := time.Now()
	defer func() { observe("write_table", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized() {
		return ErrNotInitialized
	}
	columns, err := s.schema(tableName)
	if err != nil {
		return err
	}

	path := s.tablePath(tableName)
	s.record("write_table", path, "")

	var b strings.Builder
	for r, row := range rows {
		lineStart := b.Len()
		for i, c := range columns {
			v := field(row, i)
			if err := checkField(v, s.separator, c, i == len(columns)-1); err != nil {
				return s.wrap("write_table", path, v, fmt.Errorf("row %d column %s: %w", r, c.Name, err))
			}
			if i > 0 {
				b.WriteString(s.separator)
			}
			if c.Escaped {
				b.WriteByte('"')
				b.WriteString(v)
				b.WriteByte('"')
			} else {
				b.WriteString(v)
			}
		}
		s.record("write_table", path, b.String()[lineStart:])
		b.WriteByte('\n')
	}

	if err := writeFileAtomic(path, []byte(b.String())); err != nil {
		return s.wrap("write_table", path, "", err)
	}
	return nil
}

// CheckEscapedValue reports whether v can be written to an escaped column
// that is followed by other columns, the strictest position in a row.
func (s *Storage) CheckEscapedValue(v string) error {
	s.mu.Lock()
	sep := s.separator
	ok := s.initialized()
	s.mu.Unlock()
	if !ok {
		return ErrNotInitialized
	}
	if err := checkField(v, sep, Column{Escaped: true}, false); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnstorableValue, v, err)
	}
	return nil
}

func checkField(v, sep string, c Column, last bool) error {
	if strings.ContainsAny(v, "\r\n") {
		return errors.New("value contains a line break")
	}
	if !c.Escaped && strings.Contains(v, sep) {
		return fmt.Errorf("unescaped value contains the separator %q", sep)
	}
	if c.Escaped && !last && strings.Contains(v, `"`+sep) {
		return fmt.Errorf("escaped value contains the terminator %q", `"`+sep)
	}
	return nil
}

// splitLine splits a row into exactly len(columns) fields.
func splitLine(line, sep string, columns []Column) ([]string, error) {
	fields := make([]string, 0, len(columns))
	rest := line

	for i, c := range columns {
		last := i == len(columns)-1

		if c.Escaped {
			if !strings.HasPrefix(rest, `"`) {
				return nil, fmt.Errorf("column %s: missing opening quote", c.Name)
			}
			rest = rest[1:]
			if last {
				if !strings.HasSuffix(rest, `"`) {
					return nil, fmt.Errorf("column %s: missing closing quote", c.Name)
				}
				fields = append(fields, rest[:len(rest)-1])
				rest = ""
				continue
			}
			end := strings.Index(rest, `"`+sep)
			if end < 0 {
				return nil, fmt.Errorf("column %s: unterminated quoted field", c.Name)
			}
			fields = append(fields, rest[:end])
			rest = rest[end+1+len(sep):]
			continue
		}

		if last {
			if strings.Contains(rest, sep) {
				return nil, fmt.Errorf("expected %d fields, found more", len(columns))
			}
			fields = append(fields, rest)
			rest = ""
			continue
		}
		end := strings.Index(rest, sep)
		if end < 0 {
			return nil, fmt.Errorf("expected %d fields, found %d", len(columns), i+1)
		}
		fields = append(fields, rest[:end])
		rest = rest[end+len(sep):]
	}

	return fields, nil
}
