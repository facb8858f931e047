package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/korean"
)

// tableExts are the member extensions ReadTable can parse.
var tableExts = map[string]bool{".csv": true, ".txt": true, ".tsv": true, ".xlsx": true}

// ExtractTable extracts one table member from a ZIP archive into destDir and
// returns its path. An empty member selects the only parseable member; the
// archive must then hold exactly one.
func ExtractTable(zipPath, member, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var candidates []*zip.File
	for _, f := range r.File {
		name := memberName(f)
		if f.FileInfo().IsDir() || strings.HasPrefix(name, "__MACOSX/") {
			continue
		}
		if member != "" {
			if name == member || filepath.Base(name) == member {
				return extractZIPEntry(f, destDir)
			}
			continue
		}
		if tableExts[strings.ToLower(filepath.Ext(name))] {
			candidates = append(candidates, f)
		}
	}

	if member != "" {
		return "", eris.Errorf("zip: file %q not found in archive", member)
	}
	if len(candidates) != 1 {
		return "", eris.Errorf("zip: expected exactly 1 table file, got %d", len(candidates))
	}
	return extractZIPEntry(candidates[0], destDir)
}

// memberName returns the entry name, decoding legacy CP949 names written by
// Korean Windows archivers.
func memberName(f *zip.File) string {
	if !f.NonUTF8 {
		return f.Name
	}
	name, err := korean.EUCKR.NewDecoder().String(f.Name)
	if err != nil {
		return f.Name
	}
	return name
}

// extractZIPEntry writes a single zip.File into destDir, flattening any
// directories in its name.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, filepath.Base(memberName(f)))
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}

	return destPath, nil
}
