package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// WorkbookExtensions are the file extensions read as KPI workbooks.
var WorkbookExtensions = []string{".xlsx", ".xlsm"}

// ErrNoWorkbooks is returned when no argument yields a workbook.
var ErrNoWorkbooks = errors.New("no workbooks found")

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance. Relative paths resolve
// against basePath.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

func (d *Discovery) resolve(p string) string {
	if filepath.IsAbs(p) || d.basePath == "" {
		return p
	}
	return filepath.Join(d.basePath, p)
}

// IsWorkbook reports whether name looks like a readable workbook. Office lock
// files (~$name.xlsx) are not.
func IsWorkbook(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") {
		return false
	}
	return lo.Contains(WorkbookExtensions, strings.ToLower(filepath.Ext(base)))
}

// FindWorkbooks lists the workbooks directly inside dir, sorted by name.
func (d *Discovery) FindWorkbooks(dir string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var found []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsWorkbook(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, FileInfo{
			Path:    filepath.Join(fullPath, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

// Expand turns a mix of file and directory arguments into workbook paths.
// Files are kept in argument order whatever their extension; directories
// contribute their workbooks. Duplicates are dropped.
func (d *Discovery) Expand(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		full := d.resolve(arg)
		info, err := os.Stat(full)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, full)
			continue
		}
		found, err := d.FindWorkbooks(full)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			paths = append(paths, f.Path)
		}
	}

	paths = lo.Uniq(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoWorkbooks, strings.Join(args, ", "))
	}
	return paths, nil
}
