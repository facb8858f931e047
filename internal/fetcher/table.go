package fetcher

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Table is a parsed source export: a header row and its data rows.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string
}

// TableOptions describes how to read a source export.
type TableOptions struct {
	Encoding  string // text encoding label for delimited files
	Delimiter rune
	Sheet     string  // sheet name for .xlsx files
	Member    string  // member name inside .zip archives
	Remote    Fetcher // downloads http(s) sources; nil uses NewHTTPFetcher defaults
}

// ReadTable reads a delimited text file or, for .xlsx paths, a workbook sheet.
// Http(s) sources are downloaded first and .zip sources are unpacked to their
// table member; both go through a scratch directory removed on return.
func ReadTable(ctx context.Context, src string, opts TableOptions) (*Table, error) {
	local := src
	if IsRemote(src) || isZIP(src) {
		scratch, err := os.MkdirTemp("", "coldspot-src-*")
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create scratch dir")
		}
		defer os.RemoveAll(scratch) //nolint:errcheck

		if local, err = stage(ctx, src, scratch, opts); err != nil {
			return nil, err
		}
	}

	header, rows, err := readLocal(ctx, local, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", src)
	}
	if len(header) == 0 {
		return nil, eris.Errorf("fetcher: %s has no header row", src)
	}
	return &Table{Path: src, Header: header, Rows: rows}, nil
}

// stage downloads and unpacks src into scratch, returning the local table path.
func stage(ctx context.Context, src, scratch string, opts TableOptions) (string, error) {
	local := src
	if IsRemote(src) {
		remote := opts.Remote
		if remote == nil {
			remote = NewHTTPFetcher(HTTPOptions{})
		}
		local = filepath.Join(scratch, remoteName(src))
		n, err := remote.DownloadToFile(ctx, src, local)
		if err != nil {
			return "", eris.Wrapf(err, "fetcher: fetch %s", src)
		}
		zap.L().Info("downloaded source", zap.String("url", src), zap.Int64("bytes", n))
	}
	if isZIP(local) {
		extracted, err := ExtractTable(local, opts.Member, scratch)
		if err != nil {
			return "", eris.Wrapf(err, "fetcher: unpack %s", src)
		}
		local = extracted
	}
	return local, nil
}

func readLocal(ctx context.Context, local string, opts TableOptions) ([]string, [][]string, error) {
	if strings.EqualFold(filepath.Ext(local), ".xlsx") {
		return ReadXLSX(local, opts.Sheet)
	}
	rc, err := OpenText(local, opts.Encoding)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close() //nolint:errcheck
	return CollectCSV(ctx, rc, CSVOptions{
		Delimiter:  opts.Delimiter,
		LazyQuotes: true,
		TrimSpace:  true,
	})
}

func isZIP(p string) bool {
	if IsRemote(p) {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	return strings.EqualFold(path.Ext(p), ".zip")
}

// remoteName picks a local file name for a URL, keeping its extension so the
// reader can be chosen by it.
func remoteName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "source.csv"
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return "source.csv"
	}
	return base
}
