package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pitpipe/pkg/contracts/domain"
)

// Source kinds a file extension selects
const (
	KindCSV  = "csv"
	KindXLSX = "xlsx"
)

var (
	// ErrUnsupportedFile is returned for files that are neither CSV nor XLSX
	ErrUnsupportedFile = errors.New("files: unsupported file type")
	// ErrEmptyFile is returned for zero-length files
	ErrEmptyFile = errors.New("files: file is empty")
)

// FileInfo represents a discovered event file
type FileInfo struct {
	Path    string
	Name    string
	Dataset string
	Kind    string
	Size    int64
	ModTime time.Time
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// KindOf returns the source kind selected by the extension of path
func KindOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return KindCSV, nil
	case ".xlsx":
		return KindXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
}

// DatasetOf returns the dataset whose name prefixes the base name of path.
// Case, underscores and dashes are ignored.
func DatasetOf(path string) (string, bool) {
	name := normalize(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	// longest match wins
	best := ""
	for ds := range domain.Datasets {
		if strings.HasPrefix(name, normalize(ds)) && len(ds) > len(best) {
			best = ds
		}
	}
	return best, best != ""
}

func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.ToLower(s))
}

// FindEventFiles lists the CSV and XLSX files directly in dir that belong
// to a known dataset, oldest first. Other files are skipped.
func (d *Discovery) FindEventFiles(dir string) ([]FileInfo, error) {
	// If dir is already absolute, use it directly
	fullPath := dir
	if !filepath.IsAbs(dir) {
		fullPath = filepath.Join(d.basePath, dir)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var found []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		kind, err := KindOf(name)
		if err != nil {
			continue
		}
		dataset, ok := DatasetOf(name)
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, FileInfo{
			Path:    filepath.Join(fullPath, name),
			Name:    name,
			Dataset: dataset,
			Kind:    kind,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// Sort by modification time (oldest first)
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].ModTime.Before(found[j].ModTime)
	})
	return found, nil
}

// ValidateFile checks that path is a readable, non-empty regular file
func ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	// Check if file is readable by opening it
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	return file.Close()
}
