package catalog

import (
	"fmt"
	"image"
	"path/filepath"
	"time"
)

// Folder is a catalogued directory.
type Folder struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Rotation is the clockwise rotation needed to display an image upright.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// ParseRotation converts degrees into a Rotation.
func ParseRotation(degrees int) (Rotation, error) {
	switch Rotation(degrees) {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return Rotation(degrees), nil
	}
	return Rotate0, fmt.Errorf("invalid rotation %d", degrees)
}

// Asset is a catalogued image or video file. Its identity is the folder id
// and the file name compared case-insensitively.
type Asset struct {
	FolderID                  string    `json:"folderId"`
	FileName                  string    `json:"fileName"`
	FileSize                  int64     `json:"fileSize"`
	PixelWidth                int       `json:"pixelWidth"`
	PixelHeight               int       `json:"pixelHeight"`
	ThumbnailPixelWidth       int       `json:"thumbnailPixelWidth"`
	ThumbnailPixelHeight      int       `json:"thumbnailPixelHeight"`
	ImageRotation             Rotation  `json:"imageRotation"`
	ThumbnailCreationDateTime time.Time `json:"thumbnailCreationDateTime"`
	Hash                      string    `json:"hash"`
	PHash                     string    `json:"pHash,omitempty"`
	DHash                     string    `json:"dHash,omitempty"`
	MD5Hash                   string    `json:"md5Hash,omitempty"`
	IsCorrupted               bool      `json:"isCorrupted"`
	CorruptedMessage          string    `json:"corruptedMessage,omitempty"`
	IsRotated                 bool      `json:"isRotated"`
	RotatedMessage            string    `json:"rotatedMessage,omitempty"`
	FileCreationDateTime      time.Time `json:"fileCreationDateTime"`
	FileModificationDateTime  time.Time `json:"fileModificationDateTime"`

	// ImageData is the decoded thumbnail. It is filled on demand and never
	// written to the Assets table.
	ImageData image.Image `json:"-"`
}

// FullPath joins the asset file name with its folder path.
func (a Asset) FullPath(folder Folder) string {
	return filepath.Join(folder.Path, a.FileName)
}

// SyncAssetsDirectoriesDefinition declares that media files of a source
// directory are mirrored into a destination directory.
type SyncAssetsDirectoriesDefinition struct {
	SourceDirectory         string `json:"sourceDirectory" toml:"source_directory"`
	DestinationDirectory    string `json:"destinationDirectory" toml:"destination_directory"`
	IncludeSubFolders       bool   `json:"includeSubFolders" toml:"include_sub_folders"`
	DeleteAssetsNotInSource bool   `json:"deleteAssetsNotInSource" toml:"delete_assets_not_in_source"`
}
