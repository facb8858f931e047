package coldspot

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/coldspot-cli/internal/model"
)

// Result is the outcome of classifying a batch. Every input record lands in
// exactly one of Classified or Rejected, in input order.
type Result struct {
	Thresholds Thresholds                 `json:"thresholds"`
	Classified []model.ClassifiedDistrict `json:"classified"`
	Rejected   []model.Rejection          `json:"rejected"`
}

// ColdCount returns the number of classified districts flagged as cold spots.
func (r *Result) ColdCount() int {
	n := 0
	for i := range r.Classified {
		if r.Classified[i].IsColdSpot {
			n++
		}
	}
	return n
}

// ColdSpots returns only the classified districts flagged as cold spots.
func (r *Result) ColdSpots() []model.ClassifiedDistrict {
	out := make([]model.ClassifiedDistrict, 0, r.ColdCount())
	for _, c := range r.Classified {
		if c.IsColdSpot {
			out = append(out, c)
		}
	}
	return out
}

// RejectCounts tallies rejections by reason.
func (r *Result) RejectCounts() map[model.RejectReason]int {
	counts := make(map[model.RejectReason]int)
	for _, rej := range r.Rejected {
		counts[rej.Reason]++
	}
	return counts
}

type industryStat struct {
	sum float64
	n   int
}

// IndustryAverages returns the mean monthly sales amount per industry code
// over every record in the batch that carries a finite amount.
func IndustryAverages(records []model.MergedDistrict) map[string]float64 {
	stats := make(map[string]*industryStat)
	for i := range records {
		r := &records[i].SalesRecord
		if r.IndustryCode == "" || r.SalesAmount == nil || !finite(*r.SalesAmount) {
			continue
		}
		s, ok := stats[r.IndustryCode]
		if !ok {
			s = &industryStat{}
			stats[r.IndustryCode] = s
		}
		s.sum += *r.SalesAmount
		s.n++
	}
	avgs := make(map[string]float64, len(stats))
	for code, s := range stats {
		avgs[code] = s.sum / float64(s.n)
	}
	return avgs
}

// Classify derives metrics for every record and applies the cold-spot rule.
// It performs no I/O and does not modify its input.
func Classify(records []model.MergedDistrict, th Thresholds) *Result {
	res := &Result{
		Thresholds: th,
		Classified: make([]model.ClassifiedDistrict, 0, len(records)),
	}
	avgs := IndustryAverages(records)

	for _, rec := range records {
		m, reason, detail := computeMetrics(&rec, avgs)
		if reason != "" {
			res.Rejected = append(res.Rejected, model.Rejection{
				MergedDistrict: rec,
				Reason:         reason,
				Detail:         detail,
			})
			continue
		}
		res.Classified = append(res.Classified, model.ClassifiedDistrict{
			MergedDistrict: rec,
			Metrics:        m,
			IsColdSpot:     IsColdSpot(m, th),
		})
	}
	return res
}

// IsColdSpot applies the classification rule to a set of metrics:
// weak sales efficiency with survivable tenure, or extreme intraday volatility.
func IsColdSpot(m model.Metrics, th Thresholds) bool {
	weakSales := m.Conversion < th.Conversion || m.RelSales < th.RelSales
	return (weakSales && m.QualityScore > th.Quality) || m.TimeRatio > th.TimeRatio
}

func computeMetrics(rec *model.MergedDistrict, avgs map[string]float64) (model.Metrics, model.RejectReason, string) {
	var m model.Metrics
	s := &rec.SalesRecord
	c := &rec.ChangeRecord

	if missing := missingInputs(rec); len(missing) > 0 {
		return m, model.RejectMissingInput, "missing " + strings.Join(missing, ", ")
	}
	if s.IndustryCode == "" {
		return m, model.RejectMissingIndustry, "empty industry_code"
	}
	if neg := negativeInputs(rec); len(neg) > 0 {
		return m, model.RejectNegativeInput, "negative " + strings.Join(neg, ", ")
	}
	if *s.SalesCount == 0 {
		return m, model.RejectZeroSalesCount, "monthly_sales_count is 0, conversion not computable"
	}
	avg, ok := avgs[s.IndustryCode]
	if !ok || avg == 0 {
		return m, model.RejectZeroIndustryMean, fmt.Sprintf("industry %s has zero average sales", s.IndustryCode)
	}

	amount := *s.SalesAmount
	m.Conversion = amount / float64(*s.SalesCount)
	m.IndustryAverage = avg
	m.RelSales = amount / avg
	m.MinFlow, m.MaxFlow = flowRange(s.Buckets())
	m.TimeRatio = m.MaxFlow / m.MinFlow
	m.QualityScore = qualityScore(*c.AvgMonthsOperating, *c.AvgMonthsClosed)

	for _, f := range []struct {
		name string
		v    float64
	}{
		{"conversion", m.Conversion},
		{"rel_sales", m.RelSales},
		{"time_ratio", m.TimeRatio},
		{"quality_score", m.QualityScore},
	} {
		if !finite(f.v) {
			return model.Metrics{}, model.RejectNonFinite, f.name + " is not finite"
		}
	}
	return m, "", ""
}

// flowRange returns the minimum bucket (zeros count as 1) and the unmodified
// maximum. An all-zero day has no volatility, so both ends collapse to 1.
func flowRange(buckets [model.NumTimeBuckets]*float64) (minFlow, maxFlow float64) {
	minFlow = math.Inf(1)
	maxFlow = math.Inf(-1)
	for _, b := range buckets {
		v := *b
		if v > maxFlow {
			maxFlow = v
		}
		if v == 0 {
			v = 1
		}
		if v < minFlow {
			minFlow = v
		}
	}
	if maxFlow < minFlow {
		maxFlow = minFlow
	}
	return minFlow, maxFlow
}

func qualityScore(operating, closed float64) float64 {
	if closed == 0 {
		closed = 1
	}
	return operating / (operating + closed)
}

func missingInputs(rec *model.MergedDistrict) []string {
	s := &rec.SalesRecord
	var missing []string
	if s.SalesAmount == nil {
		missing = append(missing, "monthly_sales_amount")
	}
	if s.SalesCount == nil {
		missing = append(missing, "monthly_sales_count")
	}
	for i, b := range s.Buckets() {
		if b == nil {
			missing = append(missing, model.TimeBucket(i).Column())
		}
	}
	if rec.AvgMonthsOperating == nil {
		missing = append(missing, "avg_months_operating")
	}
	if rec.AvgMonthsClosed == nil {
		missing = append(missing, "avg_months_closed")
	}
	return missing
}

func negativeInputs(rec *model.MergedDistrict) []string {
	s := &rec.SalesRecord
	var neg []string
	check := func(name string, v float64) {
		if v < 0 {
			neg = append(neg, name)
		}
	}
	check("monthly_sales_amount", *s.SalesAmount)
	if *s.SalesCount < 0 {
		neg = append(neg, "monthly_sales_count")
	}
	for i, b := range s.Buckets() {
		check(model.TimeBucket(i).Column(), *b)
	}
	check("avg_months_operating", *rec.AvgMonthsOperating)
	check("avg_months_closed", *rec.AvgMonthsClosed)
	return neg
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
