package comparator

import (
	"strings"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/mediatypes"
)

// DiskFile is the part of a directory entry the comparator needs.
type DiskFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}

func assetNameSet(assets []catalog.Asset) map[string]bool {
	set := make(map[string]bool, len(assets))
	for _, a := range assets {
		set[strings.ToLower(a.FileName)] = true
	}
	return set
}

// GetNewFileNames returns the disk files that are not catalogued.
func GetNewFileNames(diskFileNames []string, cataloguedAssets []catalog.Asset) []string {
	catalogued := assetNameSet(cataloguedAssets)
	result := []string{}
	for _, n := range diskFileNames {
		if !catalogued[strings.ToLower(n)] {
			result = append(result, n)
		}
	}
	return result
}

// GetDeletedFileNames returns the catalogued files missing from disk.
func GetDeletedFileNames(diskFileNames []string, cataloguedAssets []catalog.Asset) []string {
	onDisk := nameSet(diskFileNames)
	result := []string{}
	for _, a := range cataloguedAssets {
		if !onDisk[strings.ToLower(a.FileName)] {
			result = append(result, a.FileName)
		}
	}
	return result
}

// GetUpdatedFileNames returns the catalogued files whose disk modification
// time is newer than their thumbnail. Files missing from diskFiles are
// ignored; they are reported by GetDeletedFileNames.
func GetUpdatedFileNames(cataloguedAssets []catalog.Asset, diskFiles []DiskFile) []string {
	byName := make(map[string]DiskFile, len(diskFiles))
	for _, f := range diskFiles {
		byName[strings.ToLower(f.Name)] = f
	}

	result := []string{}
	for _, a := range cataloguedAssets {
		f, ok := byName[strings.ToLower(a.FileName)]
		if !ok {
			continue
		}
		if f.ModTime.After(a.ThumbnailCreationDateTime) {
			result = append(result, a.FileName)
		}
	}
	return result
}

// GetImageAndVideoNames splits file names by extension. Other files are
// dropped.
func GetImageAndVideoNames(fileNames []string) (images, videos []string) {
	images, videos = []string{}, []string{}
	for _, n := range fileNames {
		switch mediatypes.FileTypeOf(n) {
		case mediatypes.FileTypeImage:
			images = append(images, n)
		case mediatypes.FileTypeVideo:
			videos = append(videos, n)
		}
	}
	return images, videos
}

// GetNewFileNamesToSync returns the source files missing from the
// destination.
func GetNewFileNamesToSync(sourceFileNames, destinationFileNames []string) []string {
	dest := nameSet(destinationFileNames)
	result := []string{}
	for _, n := range sourceFileNames {
		if !dest[strings.ToLower(n)] {
			result = append(result, n)
		}
	}
	return result
}

// GetDeletedFileNamesToSync returns the destination files missing from the
// source.
func GetDeletedFileNamesToSync(sourceFileNames, destinationFileNames []string) []string {
	return GetNewFileNamesToSync(destinationFileNames, sourceFileNames)
}
