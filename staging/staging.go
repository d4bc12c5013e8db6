// Package staging keeps the CSV handoff between pipeline stages.
package staging

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"go.plantopia.dev/etl/frame"
)

// Area is one of the staging directories.
type Area int

const (
	// Raw holds tables as extracted from the source database.
	Raw Area = iota
	// Dimensional holds dim_<table> copies read by the transform stage.
	Dimensional
	// Final holds the dimension and fact tables to load.
	Final
)

func (a Area) String() string {
	switch a {
	case Raw:
		return "raw"
	case Dimensional:
		return "dimensional"
	case Final:
		return "final"
	}
	return "unknown"
}

const ext = ".csv"

// Store reads and writes one CSV file per table.
type Store struct {
	fs   afero.Fs
	dirs map[Area]string
}

// New builds a Store on fs with the three area directories.
func New(fs afero.Fs, raw, dimensional, final string) *Store {
	return &Store{
		fs: fs,
		dirs: map[Area]string{
			Raw:         raw,
			Dimensional: dimensional,
			Final:       final,
		},
	}
}

// Path returns the file path of a table in an area.
func (s *Store) Path(a Area, name string) string {
	return filepath.Join(s.dirs[a], name+ext)
}

// Write writes t as <name>.csv, creating the area directory if absent.
func (s *Store) Write(ctx context.Context, a Area, t *frame.Table) error {
	if err := s.fs.MkdirAll(s.dirs[a], 0o755); err != nil {
		return xerrors.Errorf("failed to create %s directory %s: %w", a, s.dirs[a], err)
	}

	path := s.Path(a, t.Name)
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return xerrors.Errorf("failed to open %s: %w", path, err)
	}

	if err := frame.WriteCSV(f, t); err != nil {
		f.Close()
		return xerrors.Errorf("failed to write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return xerrors.Errorf("failed to close %s: %w", path, err)
	}

	log.Ctx(ctx).Debug().Str("area", a.String()).Str("path", path).Int("rows", t.Len()).Msg("wrote table")

	return nil
}

// Read reads the named table from an area.
func (s *Store) Read(ctx context.Context, a Area, name string) (*frame.Table, error) {
	path := s.Path(a, name)
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	t, err := frame.ReadCSV(name, f)
	if err != nil {
		return nil, xerrors.Errorf("failed to read %s: %w", path, err)
	}

	log.Ctx(ctx).Debug().Str("area", a.String()).Str("path", path).Int("rows", t.Len()).Msg("read table")

	return t, nil
}

// List returns the table names in an area, sorted. A missing directory has
// no tables.
func (s *Store) List(a Area) ([]string, error) {
	dir := s.dirs[a]

	ok, err := afero.DirExists(s.fs, dir)
	if err != nil {
		return nil, xerrors.Errorf("failed to stat %s: %w", dir, err)
	}
	if !ok {
		return []string{}, nil
	}

	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, xerrors.Errorf("failed to list %s: %w", dir, err)
	}

	files := lo.Filter(infos, func(fi os.FileInfo, _ int) bool {
		return !fi.IsDir() && strings.HasSuffix(fi.Name(), ext)
	})
	names := lo.Map(files, func(fi os.FileInfo, _ int) string {
		return strings.TrimSuffix(fi.Name(), ext)
	})
	sort.Strings(names)

	return names, nil
}

// ReadAll reads every table in an area keyed by name.
func (s *Store) ReadAll(ctx context.Context, a Area) (map[string]*frame.Table, error) {
	names, err := s.List(a)
	if err != nil {
		return nil, err
	}

	tables := make(map[string]*frame.Table, len(names))
	for _, name := range names {
		t, err := s.Read(ctx, a, name)
		if err != nil {
			return nil, err
		}
		tables[name] = t
	}

	return tables, nil
}
