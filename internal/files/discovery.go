package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo describes one discovered data or report file.
type FileInfo struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified"`
}

// Discovery lists dataset and report files under a base directory.
type Discovery struct {
	basePath string
}

// NewDiscovery creates a discovery instance rooted at basePath.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// FindReports lists CSV report files in dir, newest first.
func (d *Discovery) FindReports(dir string) ([]FileInfo, error) {
	return d.find(dir, ".csv")
}

// FindSources lists candidate source datasets in dir, newest first. Both
// CSV and XLSX sources are accepted.
func (d *Discovery) FindSources(dir string) ([]FileInfo, error) {
	return d.find(dir, ".csv", ".xlsx")
}

// Latest returns the most recently modified file among matches, or false
// when the directory holds none.
func (d *Discovery) Latest(dir string, extensions ...string) (FileInfo, bool, error) {
	files, err := d.find(dir, extensions...)
	if err != nil {
		return FileInfo{}, false, err
	}
	if len(files) == 0 {
		return FileInfo{}, false, nil
	}
	return files[0], true, nil
}

func (d *Discovery) find(dir string, extensions ...string) ([]FileInfo, error) {
	fullPath := dir
	if !filepath.IsAbs(dir) {
		fullPath = filepath.Join(d.basePath, dir)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !matchesExtension(entry.Name(), extensions) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

func matchesExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
