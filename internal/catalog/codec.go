package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"media-catalog/internal/storage"
)

// Table names.
const (
	FoldersTable         = "Folders"
	AssetsTable          = "Assets"
	SyncDefinitionsTable = "SyncAssetsDirectoriesDefinitions"
	RecentPathsTable     = "RecentTargetPaths"
)

// DecodeError reports a malformed table row.
type DecodeError struct {
	Table  string
	Column string
	Value  string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s.%s from %q: %v", e.Table, e.Column, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var folderColumns = []storage.Column{
	{Name: "FolderId"},
	{Name: "Path", Escaped: true},
}

var assetColumns = []storage.Column{
	{Name: "FolderId"},
	{Name: "FileName", Escaped: true},
	{Name: "FileSize"},
	{Name: "PixelWidth"},
	{Name: "PixelHeight"},
	{Name: "ThumbnailPixelWidth"},
	{Name: "ThumbnailPixelHeight"},
	{Name: "ImageRotation"},
	{Name: "ThumbnailCreationDateTime"},
	{Name: "Hash"},
	{Name: "PHash"},
	{Name: "DHash"},
	{Name: "MD5Hash"},
	{Name: "IsAssetCorrupted"},
	{Name: "AssetCorruptedMessage", Escaped: true},
	{Name: "IsAssetRotated"},
	{Name: "AssetRotatedMessage", Escaped: true},
	{Name: "FileCreationDateTime"},
	{Name: "FileModificationDateTime"},
}

var syncDefinitionColumns = []storage.Column{
	{Name: "SourceDirectory", Escaped: true},
	{Name: "DestinationDirectory", Escaped: true},
	{Name: "IncludeSubFolders"},
	{Name: "DeleteAssetsNotInSource"},
}

var recentPathColumns = []storage.Column{
	{Name: "Path", Escaped: true},
}

// registerSchemas declares every catalog table on s.
func registerSchemas(s *storage.Storage) error {
	schemas := []struct {
		table   string
		columns []storage.Column
	}{
		{FoldersTable, folderColumns},
		{AssetsTable, assetColumns},
		{SyncDefinitionsTable, syncDefinitionColumns},
		{RecentPathsTable, recentPathColumns},
	}
	for _, sc := range schemas {
		if err := s.SetTableSchema(sc.table, sc.columns); err != nil {
			return err
		}
	}
	return nil
}

// fieldDecoder walks the fields of one row and remembers the first failure.
type fieldDecoder struct {
	table   string
	columns []storage.Column
	fields  []string
	err     error
}

func (d *fieldDecoder) fail(i int, err error) {
	if d.err == nil {
		d.err = &DecodeError{Table: d.table, Column: d.columns[i].Name, Value: d.fields[i], Err: err}
	}
}

func (d *fieldDecoder) str(i int) string {
	return d.fields[i]
}

func (d *fieldDecoder) required(i int) string {
	if d.fields[i] == "" {
		d.fail(i, fmt.Errorf("value is required"))
	}
	return d.fields[i]
}

func (d *fieldDecoder) asInt(i int) int {
	if d.fields[i] == "" {
		return 0
	}
	v, err := strconv.Atoi(d.fields[i])
	if err != nil {
		d.fail(i, err)
	}
	return v
}

func (d *fieldDecoder) asInt64(i int) int64 {
	if d.fields[i] == "" {
		return 0
	}
	v, err := strconv.ParseInt(d.fields[i], 10, 64)
	if err != nil {
		d.fail(i, err)
	}
	return v
}

func (d *fieldDecoder) asBool(i int) bool {
	if d.fields[i] == "" {
		return false
	}
	v, err := strconv.ParseBool(d.fields[i])
	if err != nil {
		d.fail(i, err)
	}
	return v
}

func (d *fieldDecoder) asTime(i int) time.Time {
	if d.fields[i] == "" {
		return time.Time{}
	}
	v, err := time.Parse(time.RFC3339Nano, d.fields[i])
	if err != nil {
		d.fail(i, err)
	}
	return v
}

func (d *fieldDecoder) asRotation(i int) Rotation {
	r, err := ParseRotation(d.asInt(i))
	if err != nil {
		d.fail(i, err)
	}
	return r
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeFolder(fields []string) (Folder, error) {
	d := &fieldDecoder{table: FoldersTable, columns: folderColumns, fields: fields}
	f := Folder{
		ID:   d.required(0),
		Path: d.required(1),
	}
	return f, d.err
}

func encodeFolder(f Folder, column int) string {
	switch column {
	case 0:
		return f.ID
	case 1:
		return f.Path
	}
	return ""
}

func decodeAsset(fields []string) (Asset, error) {
	d := &fieldDecoder{table: AssetsTable, columns: assetColumns, fields: fields}
	a := Asset{
		FolderID:                  d.required(0),
		FileName:                  d.required(1),
		FileSize:                  d.asInt64(2),
		PixelWidth:                d.asInt(3),
		PixelHeight:               d.asInt(4),
		ThumbnailPixelWidth:       d.asInt(5),
		ThumbnailPixelHeight:      d.asInt(6),
		ImageRotation:             d.asRotation(7),
		ThumbnailCreationDateTime: d.asTime(8),
		Hash:                      d.str(9),
		PHash:                     d.str(10),
		DHash:                     d.str(11),
		MD5Hash:                   d.str(12),
		IsCorrupted:               d.asBool(13),
		CorruptedMessage:          d.str(14),
		IsRotated:                 d.asBool(15),
		RotatedMessage:            d.str(16),
		FileCreationDateTime:      d.asTime(17),
		FileModificationDateTime:  d.asTime(18),
	}
	return a, d.err
}

// messageField flattens a free-text message onto one line without quotes.
func messageField(m string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", `"`, "'").Replace(m)
}

func encodeAsset(a Asset, column int) string {
	switch column {
	case 0:
		return a.FolderID
	case 1:
		return a.FileName
	case 2:
		return strconv.FormatInt(a.FileSize, 10)
	case 3:
		return strconv.Itoa(a.PixelWidth)
	case 4:
		return strconv.Itoa(a.PixelHeight)
	case 5:
		return strconv.Itoa(a.ThumbnailPixelWidth)
	case 6:
		return strconv.Itoa(a.ThumbnailPixelHeight)
	case 7:
		return strconv.Itoa(int(a.ImageRotation))
	case 8:
		return formatTime(a.ThumbnailCreationDateTime)
	case 9:
		return a.Hash
	case 10:
		return a.PHash
	case 11:
		return a.DHash
	case 12:
		return a.MD5Hash
	case 13:
		return strconv.FormatBool(a.IsCorrupted)
	case 14:
		return messageField(a.CorruptedMessage)
	case 15:
		return strconv.FormatBool(a.IsRotated)
	case 16:
		return messageField(a.RotatedMessage)
	case 17:
		return formatTime(a.FileCreationDateTime)
	case 18:
		return formatTime(a.FileModificationDateTime)
	}
	return ""
}

func decodeSyncDefinition(fields []string) (SyncAssetsDirectoriesDefinition, error) {
	d := &fieldDecoder{table: SyncDefinitionsTable, columns: syncDefinitionColumns, fields: fields}
	def := SyncAssetsDirectoriesDefinition{
		SourceDirectory:         d.required(0),
		DestinationDirectory:    d.required(1),
		IncludeSubFolders:       d.asBool(2),
		DeleteAssetsNotInSource: d.asBool(3),
	}
	return def, d.err
}

func encodeSyncDefinition(def SyncAssetsDirectoriesDefinition, column int) string {
	switch column {
	case 0:
		return def.SourceDirectory
	case 1:
		return def.DestinationDirectory
	case 2:
		return strconv.FormatBool(def.IncludeSubFolders)
	case 3:
		return strconv.FormatBool(def.DeleteAssetsNotInSource)
	}
	return ""
}

func decodeRecentPath(fields []string) (string, error) {
	d := &fieldDecoder{table: RecentPathsTable, columns: recentPathColumns, fields: fields}
	p := d.required(0)
	return p, d.err
}

func encodeRecentPath(p string, _ int) string {
	return p
}
