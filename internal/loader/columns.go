// Package loader maps source export tables onto district records.
package loader

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/coldspot-cli/internal/model"
)

// column is a logical field with the header spellings it may appear under.
// Korean names follow the Seoul open-data exports; snake_case names are
// accepted for re-exported or hand-built files.
type column struct {
	name     string
	aliases  []string
	required bool
}

var (
	colDistrictCode = column{"district_code", []string{"상권_코드", "district_code", "trdar_cd"}, true}
	colDistrictName = column{"district_name", []string{"상권_코드_명", "district_name", "trdar_cd_nm"}, true}
	colPeriod       = column{"period", []string{"기준_년분기_코드", "period", "stdr_yyqu_cd"}, false}
	colIndustryCode = column{"industry_code", []string{"서비스_업종_코드", "industry_code", "svc_induty_cd"}, true}
	colIndustryName = column{"industry_name", []string{"서비스_업종_코드_명", "industry_name", "svc_induty_cd_nm"}, false}
	colSalesAmount  = column{"monthly_sales_amount", []string{"당월_매출_금액", "monthly_sales_amount", "thsmon_selng_amt"}, true}
	colSalesCount   = column{"monthly_sales_count", []string{"당월_매출_건수", "monthly_sales_count", "thsmon_selng_co"}, true}

	colBuckets = [model.NumTimeBuckets]column{
		{"sales_00_06", []string{"시간대_00~06_매출_금액", "sales_00_06", "tmzon_00_06_selng_amt"}, true},
		{"sales_06_11", []string{"시간대_06~11_매출_금액", "sales_06_11", "tmzon_06_11_selng_amt"}, true},
		{"sales_11_14", []string{"시간대_11~14_매출_금액", "sales_11_14", "tmzon_11_14_selng_amt"}, true},
		{"sales_14_17", []string{"시간대_14~17_매출_금액", "sales_14_17", "tmzon_14_17_selng_amt"}, true},
		{"sales_17_21", []string{"시간대_17~21_매출_금액", "sales_17_21", "tmzon_17_21_selng_amt"}, true},
		{"sales_21_24", []string{"시간대_21~24_매출_금액", "sales_21_24", "tmzon_21_24_selng_amt"}, true},
	}

	colInfoName     = column{"district_name", []string{"상권명", "상권_코드_명", "district_name", "trdar_cd_nm"}, true}
	colInfoCode     = column{"district_code", []string{"상권_코드", "상권코드", "district_code", "trdar_cd"}, false}
	colRegionName   = column{"region_name", []string{"시군구명", "자치구_코드_명", "region_name", "signgu_cd_nm"}, false}
	colDistrictType = column{"district_type", []string{"상권_구분_코드_명", "상권업종대분류명", "district_type", "trdar_se_cd_nm"}, false}
	colDongName     = column{"dong_name", []string{"행정동_코드_명", "행정동명", "dong_name", "adstrd_cd_nm"}, false}

	colChangeCode = column{"district_code", []string{"상권_코드", "district_code", "trdar_cd"}, true}
	colOperating  = column{"avg_months_operating", []string{"운영_영업_개월_평균", "avg_months_operating", "opr_sale_mt_avrg"}, true}
	colClosed     = column{"avg_months_closed", []string{"폐업_영업_개월_평균", "avg_months_closed", "cls_sale_mt_avrg"}, true}
)

// normalizeCol lowercases and strips whitespace so "상권_코드 " and
// "District_Code" match their canonical spellings.
func normalizeCol(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "")
}

// headerIndex maps normalized header names to their position.
type headerIndex map[string]int

func indexHeader(header []string) headerIndex {
	m := make(headerIndex, len(header))
	for i, col := range header {
		n := normalizeCol(col)
		if _, dup := m[n]; !dup {
			m[n] = i
		}
	}
	return m
}

// lookup returns the position of the first alias present in the header, or -1.
func (h headerIndex) lookup(c column) int {
	for _, a := range c.aliases {
		if i, ok := h[normalizeCol(a)]; ok {
			return i
		}
	}
	return -1
}

// resolve finds every column and reports the required ones that are absent.
func (h headerIndex) resolve(cols ...column) (idx []int, missing []string) {
	idx = make([]int, len(cols))
	for i, c := range cols {
		idx[i] = h.lookup(c)
		if idx[i] < 0 && c.required {
			missing = append(missing, c.name)
		}
	}
	return idx, missing
}

// cell returns the trimmed value at position i, or "" when absent.
func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseNumber reads a numeric cell. Thousands separators are allowed; blank,
// placeholder, unparseable and non-finite values report ok=false.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	switch s {
	case "", "-", "*", "NA", "N/A", "null", "NULL":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseFloatPtr returns nil for a missing value and counts unparseable cells.
func parseFloatPtr(s string, bad *int) *float64 {
	v, ok := parseNumber(s)
	if !ok {
		if strings.TrimSpace(s) != "" {
			*bad++
		}
		return nil
	}
	return &v
}

// parseCountPtr parses a transaction count. Counts written as "1200.0" are
// accepted; fractional counts are treated as unparseable.
func parseCountPtr(s string, bad *int) *int64 {
	v, ok := parseNumber(s)
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt64/2 {
		if strings.TrimSpace(s) != "" {
			*bad++
		}
		return nil
	}
	n := int64(v)
	return &n
}
