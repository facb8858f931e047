package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/coldspot-cli/internal/model"
)

// csvColumns defines the ordered CSV output columns.
var csvColumns = []string{
	"district_code",
	"district_name",
	"period",
	"region_name",
	"industry_code",
	"industry_name",
	"monthly_sales_amount",
	"monthly_sales_count",
	"conversion",
	"rel_sales",
	"time_ratio",
	"quality_score",
	"is_cold_spot",
}

// WriteCSV writes classified districts as CSV with a header row.
func WriteCSV(w io.Writer, rows []model.ClassifiedDistrict) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i := range rows {
		if err := cw.Write(buildCSVRow(&rows[i])); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func buildCSVRow(d *model.ClassifiedDistrict) []string {
	return []string{
		d.DistrictCode,
		d.DistrictName,
		d.Period,
		d.RegionName,
		d.IndustryCode,
		d.IndustryName,
		formatFloatPtr(d.SalesAmount),
		formatIntPtr(d.SalesCount),
		formatFloat(d.Conversion),
		formatFloat(d.RelSales),
		formatFloat(d.TimeRatio),
		formatFloat(d.QualityScore),
		strconv.FormatBool(d.IsColdSpot),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatIntPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
