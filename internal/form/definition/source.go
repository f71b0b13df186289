package definition

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/OpenNSW/formengine/internal/form/model"
)

// ErrFormNotFound is returned when no definition exists for a form id.
var ErrFormNotFound = errors.New("form definition not found")

var extensions = []string{".json", ".yaml", ".yml"}

// FileSource serves definitions stored as <formId>.json|.yaml|.yml files in a directory.
type FileSource struct {
	Dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

// Fetch loads and validates the definition of formID.
func (s *FileSource) Fetch(_ context.Context, formID string) (*model.FormDefinition, error) {
	if formID == "" || filepath.Base(formID) != formID {
		return nil, fmt.Errorf("%w: invalid form id %q", ErrFormNotFound, formID)
	}
	for _, ext := range extensions {
		path := filepath.Join(s.Dir, formID+ext)
		def, err := LoadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if def.ID != formID {
			return nil, fmt.Errorf("definition in %s declares id %q, expected %q", path, def.ID, formID)
		}
		return def, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrFormNotFound, formID)
}

// LoadAll loads every definition file in the directory, sorted by file name.
// Files with definition errors are logged and skipped so one bad file does not hide the rest.
func (s *FileSource) LoadAll() ([]*model.FormDefinition, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := FormatFromPath(e.Name()); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	defs := make([]*model.FormDefinition, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.Dir, name)
		def, err := LoadFile(path)
		if err != nil {
			slog.Warn("skipping invalid form definition", "path", path, "error", err)
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFile reads and normalizes a single definition file.
func LoadFile(path string) (*model.FormDefinition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}
