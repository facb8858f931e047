package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sells-group/coldspot-cli/internal/model"
)

type columnDef struct {
	name     string
	pgType   string
	liteType string
}

const (
	textNotNull = "TEXT NOT NULL DEFAULT ''"
	pgFloat     = "DOUBLE PRECISION"
	pgFloatNN   = "DOUBLE PRECISION NOT NULL"
	liteFloat   = "REAL"
	liteFloatNN = "REAL NOT NULL"
)

// districtColumns is the cold_spots layout in insert order.
var districtColumns = []columnDef{
	{"district_code", "TEXT NOT NULL", "TEXT NOT NULL"},
	{"district_name", "TEXT NOT NULL", "TEXT NOT NULL"},
	{"period", textNotNull, textNotNull},
	{"industry_code", "TEXT NOT NULL", "TEXT NOT NULL"},
	{"industry_name", textNotNull, textNotNull},
	{"region_name", textNotNull, textNotNull},
	{"district_type", textNotNull, textNotNull},
	{"dong_name", textNotNull, textNotNull},
	{"monthly_sales_amount", pgFloat, liteFloat},
	{"monthly_sales_count", "BIGINT", "INTEGER"},
	{"sales_00_06", pgFloat, liteFloat},
	{"sales_06_11", pgFloat, liteFloat},
	{"sales_11_14", pgFloat, liteFloat},
	{"sales_14_17", pgFloat, liteFloat},
	{"sales_17_21", pgFloat, liteFloat},
	{"sales_21_24", pgFloat, liteFloat},
	{"avg_months_operating", pgFloat, liteFloat},
	{"avg_months_closed", pgFloat, liteFloat},
	{"conversion", pgFloatNN, liteFloatNN},
	{"industry_average", pgFloatNN, liteFloatNN},
	{"rel_sales", pgFloatNN, liteFloatNN},
	{"min_flow", pgFloatNN, liteFloatNN},
	{"max_flow", pgFloatNN, liteFloatNN},
	{"time_ratio", pgFloatNN, liteFloatNN},
	{"quality_score", pgFloatNN, liteFloatNN},
	{"is_cold_spot", "BOOLEAN NOT NULL", "INTEGER NOT NULL"},
	{"loaded_at", "TIMESTAMPTZ NOT NULL", "DATETIME NOT NULL"},
}

// districtIndexes are created alongside the table, keyed by name suffix.
var districtIndexes = [][2]string{
	{"district_name", "district_name"},
	{"industry_name", "industry_name"},
	{"industry_code", "industry_code"},
	{"region_industry", "region_name, industry_name"},
}

// insertColumns lists every column written by ReplaceColdSpots.
func insertColumns() []string {
	cols := make([]string, len(districtColumns))
	for i, c := range districtColumns {
		cols[i] = c.name
	}
	return cols
}

// selectColumns lists the columns read back into a ClassifiedDistrict.
func selectColumns() []string {
	cols := insertColumns()
	return cols[:len(cols)-1]
}

// quoteIdent quotes a single identifier for either dialect.
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// districtDDL renders CREATE TABLE and CREATE INDEX statements for the
// district table. qualified is the quoted table reference.
func districtDDL(qualified, table string, postgres bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", qualified)
	for i, c := range districtColumns {
		typ := c.liteType
		if postgres {
			typ = c.pgType
		}
		sep := ","
		if i == len(districtColumns)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "\t%s %s%s\n", c.name, typ, sep)
	}
	b.WriteString(");\n")
	for _, idx := range districtIndexes {
		fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS %s ON %s (%s);\n",
			quoteIdent("idx_"+table+"_"+idx[0]), qualified, idx[1])
	}
	return b.String()
}

// rowValues flattens a district into insert order.
func rowValues(d *model.ClassifiedDistrict, loadedAt time.Time) []any {
	return []any{
		d.DistrictCode, d.DistrictName, d.Period, d.IndustryCode, d.IndustryName,
		d.RegionName, d.DistrictType, d.DongName,
		d.SalesAmount, d.SalesCount,
		d.Sales0006, d.Sales0611, d.Sales1114, d.Sales1417, d.Sales1721, d.Sales2124,
		d.AvgMonthsOperating, d.AvgMonthsClosed,
		d.Conversion, d.IndustryAverage, d.RelSales, d.MinFlow, d.MaxFlow, d.TimeRatio, d.QualityScore,
		d.IsColdSpot, loadedAt,
	}
}

// scanDest returns scan targets matching selectColumns.
func scanDest(d *model.ClassifiedDistrict) []any {
	return []any{
		&d.DistrictCode, &d.DistrictName, &d.Period, &d.IndustryCode, &d.IndustryName,
		&d.RegionName, &d.DistrictType, &d.DongName,
		&d.SalesAmount, &d.SalesCount,
		&d.Sales0006, &d.Sales0611, &d.Sales1114, &d.Sales1417, &d.Sales1721, &d.Sales2124,
		&d.AvgMonthsOperating, &d.AvgMonthsClosed,
		&d.Conversion, &d.IndustryAverage, &d.RelSales, &d.MinFlow, &d.MaxFlow, &d.TimeRatio, &d.QualityScore,
		&d.IsColdSpot,
	}
}

// escapeLike escapes LIKE wildcards so user filters match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// recommendQuery builds the recommend SELECT. placeholder renders the nth
// bind parameter for the dialect.
func recommendQuery(qualified string, f RecommendFilter, placeholder func(n int) string) (string, []any) {
	var (
		where = []string{"is_cold_spot = " + placeholder(1)}
		args  = []any{true}
	)
	if f.Region != "" {
		args = append(args, "%"+escapeLike(f.Region)+"%")
		where = append(where, fmt.Sprintf(`region_name LIKE %s ESCAPE '\'`, placeholder(len(args))))
	}
	if f.Industry != "" {
		args = append(args, "%"+escapeLike(f.Industry)+"%")
		where = append(where, fmt.Sprintf(`industry_name LIKE %s ESCAPE '\'`, placeholder(len(args))))
	}

	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}
	col := f.Bucket.Column()
	if col == "" {
		col = model.Bucket1721.Column()
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultRecLimit
	}
	args = append(args, limit)

	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s %s, district_name, industry_code LIMIT %s",
		strings.Join(selectColumns(), ", "), qualified, strings.Join(where, " AND "),
		col, order, placeholder(len(args)))
	return q, args
}

const coldCase = "CASE WHEN is_cold_spot THEN 1 ELSE 0 END"

// totalsQuery counts all rows and cold rows.
func totalsQuery(qualified string) string {
	return fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(%s), 0) FROM %s", coldCase, qualified)
}

// groupQuery counts rows and cold rows per value of col, most cold first.
func groupQuery(qualified, col, limitPlaceholder string) string {
	return fmt.Sprintf(
		"SELECT %[1]s, COUNT(*), COALESCE(SUM(%[2]s), 0) FROM %[3]s GROUP BY %[1]s ORDER BY 3 DESC, 2 DESC, 1 LIMIT %[4]s",
		col, coldCase, qualified, limitPlaceholder)
}

func coldRatio(total, cold int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(cold) / float64(total)
}
