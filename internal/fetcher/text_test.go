package fetcher

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func writeEUCKR(t *testing.T, content string) string {
	t.Helper()
	encoded, err := korean.EUCKR.NewEncoder().String(content)
	require.NoError(t, err)
	return writeFixture(t, "cp949.csv", encoded)
}

func TestEncoding_Labels(t *testing.T) {
	for _, label := range []string{"cp949", "CP949", "euc-kr", "windows-949", "utf-8", "", "latin1", "shift_jis"} {
		t.Run(label, func(t *testing.T) {
			enc, err := Encoding(label)
			require.NoError(t, err)
			assert.NotNil(t, enc)
		})
	}

	_, err := Encoding("klingon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestOpenText_DecodesCP949(t *testing.T) {
	path := writeEUCKR(t, "상권_코드_명,시군구명\n이화동,종로구\n")

	rc, err := OpenText(path, "cp949")
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "상권_코드_명,시군구명\n이화동,종로구\n", string(data))
}

func TestOpenText_StripsUTF8BOM(t *testing.T) {
	path := writeFixture(t, "bom.csv", "\ufeffa,b\n1,2\n")

	rc, err := OpenText(path, "utf-8")
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestOpenText_Missing(t *testing.T) {
	_, err := OpenText(filepath.Join(t.TempDir(), "nope.csv"), "utf-8")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
