package actions

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Assets is the rotating image list used by playlist workers. The list is
// re-read every iteration so files can be added or removed while running.
type Assets interface {
	List() ([]string, error)
	Read(name string) ([]byte, error)
}

var imageExts = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}}

// DirAssets serves image files from a directory, sorted by name.
type DirAssets struct {
	Dir string
}

func (d DirAssets) List() ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if _, ok := imageExts[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d DirAssets) Read(name string) ([]byte, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("bad asset name %q", name)
	}
	return os.ReadFile(filepath.Join(d.Dir, name))
}

// EnsureDir creates the asset directory if missing.
func (d DirAssets) EnsureDir() error {
	if d.Dir == "" {
		return nil
	}
	return os.MkdirAll(d.Dir, 0o755)
}
