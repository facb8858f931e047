package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coldspot-cli/internal/coldspot"
	"github.com/sells-group/coldspot-cli/internal/config"
	"github.com/sells-group/coldspot-cli/internal/loader"
	"github.com/sells-group/coldspot-cli/internal/model"
	"github.com/sells-group/coldspot-cli/internal/store"
)

func TestClassify(t *testing.T) {
	rep, err := Classify(context.Background(), testOptions(t))
	require.NoError(t, err)

	assert.Len(t, rep.Merge.Records, 4)
	assert.Equal(t, 1, rep.Merge.UnmatchedSales)
	require.Len(t, rep.Result.Classified, 3)
	require.Len(t, rep.Result.Rejected, 1)

	assert.Equal(t, "1,2,3", codes(len(rep.Result.Classified), func(i int) string {
		return rep.Result.Classified[i].DistrictCode
	}))
	assert.Equal(t, "1,3", codes(len(rep.Result.ColdSpots()), func(i int) string {
		return rep.Result.ColdSpots()[i].DistrictCode
	}))

	rej := rep.Result.Rejected[0]
	assert.Equal(t, "4", rej.DistrictCode)
	assert.Equal(t, model.RejectZeroSalesCount, rej.Reason)

	// Rejected rows with an amount still count toward the industry mean.
	for _, c := range rep.Result.Classified {
		assert.InDelta(t, 26500, c.IndustryAverage, 1e-9)
	}
	assert.Equal(t, "마포구", rep.Result.Classified[2].RegionName)
	assert.InDelta(t, 500, rep.Result.Classified[2].TimeRatio, 1e-9)

	assert.Equal(t, model.RunResult{Merged: 4, Classified: 3, Rejected: 1, ColdSpots: 2}, rep.RunResult())
}

func TestClassify_MissingInput(t *testing.T) {
	opts := testOptions(t)
	opts.InfoPath = filepath.Join(t.TempDir(), "missing.csv")

	_, err := Classify(context.Background(), opts)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageLoad, se.Stage)
	assert.Equal(t, KindInputNotFound, se.Kind)
	assert.ErrorIs(t, err, loader.ErrInputNotFound)
	assert.Contains(t, err.Error(), "missing.csv")
}

func TestClassify_SchemaMismatch(t *testing.T) {
	opts := testOptions(t)
	opts.ChangePath = writeFile(t, t.TempDir(), "change.csv", "상권_코드,운영_영업_개월_평균\n1,10\n")

	_, err := Classify(context.Background(), opts)
	require.Error(t, err)
	assert.Equal(t, KindSchemaMismatch, KindOf(err))
	assert.Contains(t, err.Error(), "avg_months_closed")
}

func TestClassify_MergeKeyUnavailable(t *testing.T) {
	opts := testOptions(t)
	opts.Merge.ChangeKey = "code_period"

	_, err := Classify(context.Background(), opts)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageMerge, se.Stage)
	assert.Equal(t, KindSchemaMismatch, se.Kind)
}

func TestClassify_InvalidThresholds(t *testing.T) {
	opts := testOptions(t)
	opts.Thresholds.Quality = -1

	_, err := Classify(context.Background(), opts)
	require.Error(t, err)
	assert.Equal(t, KindComputationDefect, KindOf(err))
}

func TestRun_SQLite(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "coldspot.db"), "")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	opts := testOptions(t)
	opts.RejectsPath = filepath.Join(filepath.Dir(opts.JSONPath), "rejects.json")

	rep, err := Run(ctx, st, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, int64(3), rep.Persisted)
	assert.Equal(t, 2, rep.Exported)

	sum, err := st.Summarize(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.Total)
	assert.Equal(t, int64(2), sum.ColdSpots)

	data, err := os.ReadFile(opts.JSONPath)
	require.NoError(t, err)
	var cold []map[string]any
	require.NoError(t, json.Unmarshal(data, &cold))
	require.Len(t, cold, 2)
	assert.Equal(t, "알파", cold[0]["district_name"])

	data, err = os.ReadFile(opts.RejectsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "zero_sales_count")

	runs, err := st.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].ID)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, int64(2), runs[0].ColdSpots)
	assert.Equal(t, coldspot.DefaultThresholds().String(), runs[0].Thresholds)
}

func TestRun_SQLite_RecordsFailure(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "coldspot.db"), "")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	opts := testOptions(t)
	opts.SalesPath = filepath.Join(t.TempDir(), "nope.csv")

	_, err = Run(ctx, st, opts)
	require.Error(t, err)
	assert.Equal(t, KindInputNotFound, KindOf(err))

	runs, err := st.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "nope.csv")
}

func TestRun_PersistFailureSkipsJSON(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)

	st := &mockStore{}
	st.On("StartRun", mock.Anything, "default", opts.Thresholds.String()).
		Return(&model.Run{ID: "run-1", Status: model.RunStatusRunning}, nil)
	st.On("ReplaceColdSpots", mock.Anything, mock.Anything, mock.Anything).
		Return(int64(0), errors.New("sqlite: replace: disk full"))
	st.On("FailRun", mock.Anything, "run-1", mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	_, err := Run(ctx, st, opts)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StagePersist, se.Stage)
	assert.Equal(t, KindSinkWriteFailure, se.Kind)

	_, statErr := os.Stat(opts.JSONPath)
	assert.True(t, os.IsNotExist(statErr), "JSON artifact must not be written when the table write fails")
	st.AssertExpectations(t)
	st.AssertNotCalled(t, "CompleteRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_SQLite_UnwritableArtifactKeepsTable(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "coldspot.db"), "")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	prior := model.ClassifiedDistrict{IsColdSpot: true}
	prior.DistrictCode = "9999"
	prior.DistrictName = "이전상권"
	prior.IndustryCode = "CS100001"
	_, err = st.ReplaceColdSpots(ctx, []model.ClassifiedDistrict{prior}, time.Now())
	require.NoError(t, err)

	opts := testOptions(t)
	require.NoError(t, os.MkdirAll(filepath.Join(opts.JSONPath, "occupied"), 0o755))

	_, err = Run(ctx, st, opts)
	require.Error(t, err)
	assert.Equal(t, KindSinkWriteFailure, KindOf(err))

	sum, err := st.Summarize(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Total, "table must keep its prior rows")

	rows, err := st.Recommend(ctx, store.RecommendFilter{Bucket: model.Bucket1721})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "9999", rows[0].DistrictCode)

	runs, err := st.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
}

func TestRun_UnwritableRejectsSkipsTable(t *testing.T) {
	opts := testOptions(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	opts.RejectsPath = filepath.Join(blocker, "rejects.json")

	st := &mockStore{}
	st.On("StartRun", mock.Anything, mock.Anything, mock.Anything).
		Return(&model.Run{ID: "run-3"}, nil)
	st.On("FailRun", mock.Anything, "run-3", mock.Anything).Return(nil)

	_, err := Run(context.Background(), st, opts)
	require.Error(t, err)
	assert.Equal(t, KindSinkWriteFailure, KindOf(err))
	st.AssertExpectations(t)
	st.AssertNotCalled(t, "ReplaceColdSpots", mock.Anything, mock.Anything, mock.Anything)

	entries, err := os.ReadDir(filepath.Dir(opts.JSONPath))
	require.NoError(t, err)
	assert.Empty(t, entries, "staged cold-spot file must be discarded")
}

func TestRun_StartRunFails(t *testing.T) {
	st := &mockStore{}
	st.On("StartRun", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := Run(context.Background(), st, testOptions(t))
	require.Error(t, err)
	assert.Equal(t, KindSinkWriteFailure, KindOf(err))
	st.AssertExpectations(t)
}

func TestRun_CompleteRunFailureIsNotFatal(t *testing.T) {
	opts := testOptions(t)
	opts.JSONPath = ""

	st := &mockStore{}
	st.On("StartRun", mock.Anything, mock.Anything, mock.Anything).
		Return(&model.Run{ID: "run-2"}, nil)
	st.On("ReplaceColdSpots", mock.Anything, mock.Anything, mock.Anything).Return(int64(3), nil)
	st.On("CompleteRun", mock.Anything, "run-2", model.RunResult{Merged: 4, Classified: 3, Rejected: 1, ColdSpots: 2}).
		Return(errors.New("run not found"))

	rep, err := Run(context.Background(), st, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rep.Persisted)
	assert.Zero(t, rep.Exported)
	st.AssertExpectations(t)
}

func TestOptionsFromConfig(t *testing.T) {
	conv := 6000.0
	cfg := &config.Config{
		Input: config.InputConfig{
			SalesPath: "s.csv", InfoPath: "i.csv", ChangePath: "c.csv",
			Encoding: "cp949", Delimiter: ";", Sheet: "Sheet1", Member: "sales.csv",
		},
		Merge:      config.MergeConfig{InfoKey: "code", ChangeKey: "auto"},
		Output:     config.OutputConfig{JSONPath: "out.json"},
		Thresholds: config.ThresholdConfig{Preset: "relaxed", Conversion: &conv},
	}

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, ';', opts.Table.Delimiter)
	assert.Equal(t, "cp949", opts.Table.Encoding)
	assert.Equal(t, "sales.csv", opts.Table.Member)
	assert.NotNil(t, opts.Table.Remote)
	assert.Equal(t, "relaxed", opts.Preset)
	assert.InDelta(t, 6000, opts.Thresholds.Conversion, 1e-9)
	assert.InDelta(t, 0.7, opts.Thresholds.RelSales, 1e-9)
	assert.Equal(t, "code", opts.Merge.InfoKey)

	cfg.Thresholds.Preset = "bogus"
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}

func TestStageError(t *testing.T) {
	inner := errors.New("boom")
	err := stageError(StagePersist, inner)
	assert.EqualError(t, err, "pipeline: persist stage failed (sink_write_failure): boom")
	assert.ErrorIs(t, err, inner)
	assert.Nil(t, stageError(StageLoad, nil))

	// Already attributed errors keep their original stage.
	assert.Same(t, err, stageError(StageLoad, err))
	assert.Equal(t, Kind(""), KindOf(inner))
}
