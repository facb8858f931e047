package coldspot

import (
	"sort"

	"github.com/sells-group/coldspot-cli/internal/model"
)

// Summarize reports totals and the top groups by cold-spot count for a
// classified batch. top <= 0 keeps every group.
func Summarize(rows []model.ClassifiedDistrict, top int) *model.Summary {
	sum := &model.Summary{Total: int64(len(rows))}
	regions := map[string]*model.GroupCount{}
	industries := map[string]*model.GroupCount{}

	for i := range rows {
		r := &rows[i]
		if r.IsColdSpot {
			sum.ColdSpots++
		}
		tally(regions, r.RegionName, r.IsColdSpot)
		tally(industries, r.IndustryName, r.IsColdSpot)
	}
	if sum.Total > 0 {
		sum.ColdRatio = float64(sum.ColdSpots) / float64(sum.Total)
	}
	sum.Regions = rankGroups(regions, top)
	sum.Industries = rankGroups(industries, top)
	return sum
}

func tally(groups map[string]*model.GroupCount, name string, cold bool) {
	g, ok := groups[name]
	if !ok {
		g = &model.GroupCount{Name: name}
		groups[name] = g
	}
	g.Total++
	if cold {
		g.Cold++
	}
}

// rankGroups orders by cold count, then total, then name.
func rankGroups(groups map[string]*model.GroupCount, top int) []model.GroupCount {
	out := make([]model.GroupCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cold != out[j].Cold {
			return out[i].Cold > out[j].Cold
		}
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out
}
