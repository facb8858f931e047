// Package export writes classified districts to static artifacts.
package export

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/coldspot-cli/internal/model"
)

// EncodeJSON writes v as indented JSON without HTML escaping, so Hangul and
// characters such as "&" stay readable.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "export: encode json")
}

// Staged is a JSON artifact encoded and synced to a temp file next to its
// destination, waiting for Commit to rename it into place.
type Staged struct {
	Path  string
	Count int // elements in the staged array
	tmp   string
}

// StageJSONFile encodes v into a temp file in path's directory. Nothing is
// visible at path until Commit. Callers must Discard a stage they abandon.
func StageJSONFile(path string, v any) (*Staged, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create dir %s", dir)
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return nil, eris.Errorf("export: %s is a directory", path)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, eris.Wrap(err, "export: create temp file")
	}
	st := &Staged{Path: path, tmp: tmp.Name()}

	if err := EncodeJSON(tmp, v); err != nil {
		_ = tmp.Close()
		st.Discard()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		st.Discard()
		return nil, eris.Wrap(err, "export: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		st.Discard()
		return nil, eris.Wrap(err, "export: close temp file")
	}
	if err := os.Chmod(st.tmp, 0o644); err != nil {
		st.Discard()
		return nil, eris.Wrap(err, "export: chmod temp file")
	}
	return st, nil
}

// Commit renames the staged file into place.
func (s *Staged) Commit() error {
	if err := os.Rename(s.tmp, s.Path); err != nil {
		return eris.Wrapf(err, "export: rename into %s", s.Path)
	}
	return nil
}

// Discard removes the temp file. It is a no-op after Commit.
func (s *Staged) Discard() {
	_ = os.Remove(s.tmp)
}

// StageColdSpots stages the cold-spot subset of rows as a JSON array. An
// empty result is written as [] rather than null.
func StageColdSpots(path string, rows []model.ClassifiedDistrict) (*Staged, error) {
	cold := make([]model.ClassifiedDistrict, 0, len(rows))
	for _, r := range rows {
		if r.IsColdSpot {
			cold = append(cold, r)
		}
	}
	st, err := StageJSONFile(path, cold)
	if err != nil {
		return nil, err
	}
	st.Count = len(cold)
	return st, nil
}

// StageRejections stages rejected districts as a JSON array.
func StageRejections(path string, rejected []model.Rejection) (*Staged, error) {
	if rejected == nil {
		rejected = []model.Rejection{}
	}
	st, err := StageJSONFile(path, rejected)
	if err != nil {
		return nil, err
	}
	st.Count = len(rejected)
	return st, nil
}
