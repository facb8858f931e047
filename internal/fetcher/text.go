package fetcher

import (
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding resolves a text encoding label. Besides every WHATWG label known to
// htmlindex it accepts the Windows code page name "cp949", which is what the
// Seoul open-data exports are saved as. UTF-8 input has any BOM stripped.
func Encoding(label string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	case "cp949", "ms949", "uhc":
		return korean.EUCKR, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, eris.Wrapf(err, "text: unsupported encoding %q", label)
	}
	return enc, nil
}

type decodedFile struct {
	io.Reader
	f *os.File
}

func (d *decodedFile) Close() error { return d.f.Close() }

// OpenText opens a file and decodes it to UTF-8 on the fly.
func OpenText(path, label string) (io.ReadCloser, error) {
	enc, err := Encoding(label)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "text: open %s", path)
	}
	return &decodedFile{Reader: transform.NewReader(f, enc.NewDecoder()), f: f}, nil
}
