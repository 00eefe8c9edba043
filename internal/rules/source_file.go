package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"github.com/fsnotify/fsnotify"
)

var fileNamePattern = regexp.MustCompile(`^section-(\d+)\.json$`)

// FileSource stores each section's rule set as section-<n>.json in a
// directory.
type FileSource struct {
	dir string
}

// NewFileSource returns a source rooted at dir. The directory is created on
// first save.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Dir returns the backing directory.
func (f *FileSource) Dir() string {
	return f.dir
}

// Path returns the file that holds section's rules.
func (f *FileSource) Path(section int) string {
	return filepath.Join(f.dir, fmt.Sprintf("section-%d.json", section))
}

func (f *FileSource) Load(ctx context.Context, section int) (Set, error) {
	if err := ctx.Err(); err != nil {
		return Set{}, err
	}
	data, err := os.ReadFile(f.Path(section))
	if errors.Is(err, fs.ErrNotExist) {
		return Set{}, ErrNotFound
	}
	if err != nil {
		return Set{}, err
	}

	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return Set{}, fmt.Errorf("%w: %s: %w", ErrCorrupt, f.Path(section), err)
	}
	return set, nil
}

// Save writes the set to a temporary file and renames it into place so that
// readers and watchers never observe a partial file.
func (f *FileSource) Save(ctx context.Context, section int, set Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if set.Include == nil {
		set.Include = []Rule{}
	}
	if set.Exclude == nil {
		set.Exclude = []Rule{}
	}
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".section-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path(section))
}

func (f *FileSource) Sections(context.Context) ([]int, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []int
	for _, e := range entries {
		if id, ok := sectionFromFile(e.Name()); ok && !e.IsDir() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Watch reports writes, renames and removals of rule files until ctx is done.
func (f *FileSource) Watch(ctx context.Context, onChange func(section int)) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(f.dir); err != nil {
		return fmt.Errorf("watch %s: %w", f.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if id, ok := sectionFromFile(filepath.Base(event.Name)); ok {
				onChange(id)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", f.dir, err)
		}
	}
}

func sectionFromFile(name string) (int, bool) {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
