package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coldspot-cli/internal/loader"
	"github.com/sells-group/coldspot-cli/internal/model"
)

func sales(code, name, period string) model.SalesRecord {
	return model.SalesRecord{DistrictCode: code, DistrictName: name, Period: period, IndustryCode: "I1"}
}

func change(code, period string, operating float64) model.ChangeRecord {
	return model.ChangeRecord{
		ChangeCode:         code,
		ChangePeriod:       period,
		AvgMonthsOperating: f64(operating),
		AvgMonthsClosed:    f64(1),
	}
}

func TestMerge_InnerJoinByName(t *testing.T) {
	s := &loader.SalesSet{Records: []model.SalesRecord{
		sales("1", "Alpha", ""),
		sales("2", "Beta", ""),
		sales("3", "Gamma", ""),
	}}
	in := &loader.InfoSet{Records: []model.InfoRecord{
		{InfoName: "Gamma", RegionName: "Mapo"},
		{InfoName: "Alpha", RegionName: "Yongsan"},
		{InfoName: "Alpha", RegionName: "Duplicate"},
	}}
	ch := &loader.ChangeSet{Records: []model.ChangeRecord{change("1", "", 10)}}

	res, err := Merge(s, in, ch, Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	assert.Equal(t, "Alpha", res.Records[0].DistrictName)
	assert.Equal(t, "Yongsan", res.Records[0].RegionName)
	assert.InDelta(t, 10, *res.Records[0].AvgMonthsOperating, 1e-9)

	assert.Equal(t, "Gamma", res.Records[1].DistrictName)
	assert.Nil(t, res.Records[1].AvgMonthsOperating)

	assert.Equal(t, ChangeKeyCode, res.ChangeKey)
	assert.Equal(t, 1, res.UnmatchedSales)
	assert.Equal(t, 1, res.UnmatchedChange)
	assert.Equal(t, 1, res.DuplicateInfo)
}

func TestMerge_InfoByCode(t *testing.T) {
	s := &loader.SalesSet{Records: []model.SalesRecord{sales("1", "Alpha", "")}}
	in := &loader.InfoSet{HasCode: true, Records: []model.InfoRecord{{InfoCode: "1", InfoName: "Other", RegionName: "Jung"}}}

	res, err := Merge(s, in, &loader.ChangeSet{}, Options{InfoKey: InfoKeyCode})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Jung", res.Records[0].RegionName)

	_, err = Merge(s, &loader.InfoSet{}, &loader.ChangeSet{}, Options{InfoKey: InfoKeyCode})
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestMerge_ChangeKeyAutoUsesPeriod(t *testing.T) {
	s := &loader.SalesSet{HasPeriod: true, Records: []model.SalesRecord{
		sales("1", "Alpha", "20231"),
		sales("1", "Alpha", "20241"),
	}}
	in := &loader.InfoSet{Records: []model.InfoRecord{{InfoName: "Alpha"}}}
	ch := &loader.ChangeSet{HasPeriod: true, Records: []model.ChangeRecord{
		change("1", "20241", 24),
		change("1", "20231", 12),
	}}

	res, err := Merge(s, in, ch, Options{ChangeKey: ChangeKeyAuto})
	require.NoError(t, err)
	assert.Equal(t, ChangeKeyCodePeriod, res.ChangeKey)
	require.Len(t, res.Records, 2)
	assert.InDelta(t, 12, *res.Records[0].AvgMonthsOperating, 1e-9)
	assert.InDelta(t, 24, *res.Records[1].AvgMonthsOperating, 1e-9)
}

func TestMerge_ChangeKeyCodeLatestPeriodWins(t *testing.T) {
	s := &loader.SalesSet{HasPeriod: true, Records: []model.SalesRecord{
		sales("1", "Alpha", "20231"),
		sales("1", "Alpha", "20241"),
	}}
	in := &loader.InfoSet{Records: []model.InfoRecord{{InfoName: "Alpha"}}}
	ch := &loader.ChangeSet{HasPeriod: true, Records: []model.ChangeRecord{
		change("1", "20231", 12),
		change("1", "20242", 30),
		change("1", "20241", 24),
	}}

	res, err := Merge(s, in, ch, Options{ChangeKey: ChangeKeyCode})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	for _, r := range res.Records {
		assert.InDelta(t, 30, *r.AvgMonthsOperating, 1e-9)
		assert.Equal(t, "20242", r.ChangePeriod)
	}
}

func TestMerge_Errors(t *testing.T) {
	s := &loader.SalesSet{}
	in := &loader.InfoSet{}

	_, err := Merge(s, in, &loader.ChangeSet{HasPeriod: true}, Options{ChangeKey: ChangeKeyCodePeriod})
	assert.ErrorIs(t, err, ErrKeyUnavailable)

	_, err = Merge(s, in, &loader.ChangeSet{}, Options{ChangeKey: "fuzzy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown change key")

	_, err = Merge(s, in, &loader.ChangeSet{}, Options{InfoKey: "dong"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown info key")
}

func TestLaterPeriod(t *testing.T) {
	assert.True(t, laterPeriod("20242", "20241"))
	assert.False(t, laterPeriod("20241", "20241"))
	assert.True(t, laterPeriod("202401", "20244"))
	assert.True(t, laterPeriod("20241", ""))
}

func f64(v float64) *float64 { return &v }

func i64(v int64) *int64 { return &v }
