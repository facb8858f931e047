package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/coldspot-cli/internal/coldspot"
	"github.com/sells-group/coldspot-cli/internal/fetcher"
)

const salesCSV = `상권_코드,상권_코드_명,서비스_업종_코드,서비스_업종_코드_명,당월_매출_금액,당월_매출_건수,시간대_00~06_매출_금액,시간대_06~11_매출_금액,시간대_11~14_매출_금액,시간대_14~17_매출_금액,시간대_17~21_매출_금액,시간대_21~24_매출_금액
1,알파,CS1,한식음식점,1000,1,100,100,100,100,100,100
2,베타,CS1,한식음식점,3000,1,100,100,100,100,100,100
3,감마,CS1,한식음식점,100000,10,0,100,500,100,100,100
4,델타,CS1,한식음식점,2000,0,100,100,100,100,100,100
5,엡실론,CS1,한식음식점,1000,1,100,100,100,100,100,100
`

const infoCSV = `상권명,시군구명,상권_구분_코드_명,행정동_코드_명
알파,용산구,골목상권,이태원1동
베타,용산구,골목상권,한남동
감마,마포구,발달상권,서교동
델타,중구,전통시장,명동
`

const changeCSV = `상권_코드,운영_영업_개월_평균,폐업_영업_개월_평균
1,60,20
2,10,90
3,60,20
4,60,20
`

// writeFile writes content under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// testOptions writes the three fixture exports and returns options reading them.
func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	return Options{
		SalesPath:  writeFile(t, dir, "sales.csv", salesCSV),
		InfoPath:   writeFile(t, dir, "info.csv", infoCSV),
		ChangePath: writeFile(t, dir, "change.csv", changeCSV),
		Table:      fetcher.TableOptions{Encoding: "utf-8", Delimiter: ','},
		Preset:     coldspot.PresetDefault,
		Thresholds: coldspot.DefaultThresholds(),
		JSONPath:   filepath.Join(dir, "public", "api", "cold-spots.json"),
	}
}

func codes(n int, get func(i int) string) string {
	out := make([]string, n)
	for i := range out {
		out[i] = get(i)
	}
	return strings.Join(out, ",")
}
