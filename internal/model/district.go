// Package model defines the record types that flow through the cold-spot pipeline.
package model

// TimeBucket identifies one of the six fixed, non-overlapping sales windows of a day.
type TimeBucket int

const (
	Bucket0006 TimeBucket = iota // 00:00–06:00
	Bucket0611                   // 06:00–11:00
	Bucket1114                   // 11:00–14:00
	Bucket1417                   // 14:00–17:00
	Bucket1721                   // 17:00–21:00
	Bucket2124                   // 21:00–24:00
)

// NumTimeBuckets is the number of daily sales windows.
const NumTimeBuckets = 6

var bucketColumns = [NumTimeBuckets]string{
	"sales_00_06", "sales_06_11", "sales_11_14", "sales_14_17", "sales_17_21", "sales_21_24",
}

var bucketAliases = map[string]TimeBucket{
	"dawn":      Bucket0006,
	"morning":   Bucket0611,
	"lunch":     Bucket1114,
	"afternoon": Bucket1417,
	"evening":   Bucket1721,
	"night":     Bucket2124,
}

// Column returns the sink column name for the bucket.
func (b TimeBucket) Column() string {
	if b < 0 || int(b) >= NumTimeBuckets {
		return ""
	}
	return bucketColumns[b]
}

// String returns the column name.
func (b TimeBucket) String() string { return b.Column() }

// ParseTimeBucket accepts either a column name ("sales_17_21") or an alias ("evening").
func ParseTimeBucket(s string) (TimeBucket, bool) {
	if b, ok := bucketAliases[s]; ok {
		return b, true
	}
	for i, c := range bucketColumns {
		if c == s {
			return TimeBucket(i), true
		}
	}
	return 0, false
}

// TimeBucketNames lists the accepted aliases in day order.
func TimeBucketNames() []string {
	return []string{"dawn", "morning", "lunch", "afternoon", "evening", "night"}
}

// SalesRecord is one row of the estimated-sales export: a district in a
// reporting period for one service industry. Nil numeric fields were empty
// or unparseable in the source.
type SalesRecord struct {
	DistrictCode string   `json:"district_code"`
	DistrictName string   `json:"district_name"`
	Period       string   `json:"period,omitempty"`
	IndustryCode string   `json:"industry_code"`
	IndustryName string   `json:"industry_name,omitempty"`
	SalesAmount  *float64 `json:"monthly_sales_amount"`
	SalesCount   *int64   `json:"monthly_sales_count"`
	Sales0006    *float64 `json:"sales_00_06"`
	Sales0611    *float64 `json:"sales_06_11"`
	Sales1114    *float64 `json:"sales_11_14"`
	Sales1417    *float64 `json:"sales_14_17"`
	Sales1721    *float64 `json:"sales_17_21"`
	Sales2124    *float64 `json:"sales_21_24"`
}

// Buckets returns the six time-bucket amounts in day order.
func (r *SalesRecord) Buckets() [NumTimeBuckets]*float64 {
	return [NumTimeBuckets]*float64{r.Sales0006, r.Sales0611, r.Sales1114, r.Sales1417, r.Sales1721, r.Sales2124}
}

// SetBucket assigns a time-bucket amount.
func (r *SalesRecord) SetBucket(b TimeBucket, v *float64) {
	switch b {
	case Bucket0006:
		r.Sales0006 = v
	case Bucket0611:
		r.Sales0611 = v
	case Bucket1114:
		r.Sales1114 = v
	case Bucket1417:
		r.Sales1417 = v
	case Bucket1721:
		r.Sales1721 = v
	case Bucket2124:
		r.Sales2124 = v
	}
}

// InfoRecord describes a district. InfoName (or InfoCode) is the join key against sales.
type InfoRecord struct {
	InfoCode     string `json:"-"`
	InfoName     string `json:"-"`
	RegionName   string `json:"region_name,omitempty"`
	DistrictType string `json:"district_type,omitempty"`
	DongName     string `json:"dong_name,omitempty"`
}

// ChangeRecord carries business tenure indicators for a district and period.
type ChangeRecord struct {
	ChangeCode         string   `json:"-"`
	ChangePeriod       string   `json:"-"`
	AvgMonthsOperating *float64 `json:"avg_months_operating"`
	AvgMonthsClosed    *float64 `json:"avg_months_closed"`
}

// MergedDistrict is a sales row joined with its district info and change indicators.
type MergedDistrict struct {
	SalesRecord
	InfoRecord
	ChangeRecord
}

// Metrics holds the values derived for a single district.
type Metrics struct {
	Conversion      float64 `json:"conversion"`
	IndustryAverage float64 `json:"industry_average"`
	RelSales        float64 `json:"rel_sales"`
	MinFlow         float64 `json:"min_flow"`
	MaxFlow         float64 `json:"max_flow"`
	TimeRatio       float64 `json:"time_ratio"`
	QualityScore    float64 `json:"quality_score"`
}

// ClassifiedDistrict is a merged district with its metrics and cold-spot decision.
type ClassifiedDistrict struct {
	MergedDistrict
	Metrics
	IsColdSpot bool `json:"is_cold_spot"`
}

// RejectReason explains why a district could not be classified.
type RejectReason string

const (
	RejectMissingInput     RejectReason = "missing_input"
	RejectMissingIndustry  RejectReason = "missing_industry"
	RejectNegativeInput    RejectReason = "negative_input"
	RejectZeroSalesCount   RejectReason = "zero_sales_count"
	RejectZeroIndustryMean RejectReason = "zero_industry_average"
	RejectNonFinite        RejectReason = "non_finite"
)

// Rejection is a merged district that was excluded from classification.
type Rejection struct {
	MergedDistrict
	Reason RejectReason `json:"reason"`
	Detail string       `json:"detail"`
}
