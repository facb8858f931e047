package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/coldspot-cli/internal/model"
	"github.com/sells-group/coldspot-cli/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ReplaceColdSpots(ctx context.Context, rows []model.ClassifiedDistrict, loadedAt time.Time) (int64, error) {
	args := m.Called(ctx, rows, loadedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Recommend(ctx context.Context, filter store.RecommendFilter) ([]model.ClassifiedDistrict, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ClassifiedDistrict), args.Error(1)
}

func (m *mockStore) Summarize(ctx context.Context, top int) (*model.Summary, error) {
	args := m.Called(ctx, top)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Summary), args.Error(1)
}

func (m *mockStore) StartRun(ctx context.Context, preset, thresholds string) (*model.Run, error) {
	args := m.Called(ctx, preset, thresholds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, result model.RunResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, message string) error {
	args := m.Called(ctx, runID, message)
	return args.Error(0)
}

func (m *mockStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ store.Store = (*mockStore)(nil)
