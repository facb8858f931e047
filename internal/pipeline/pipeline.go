// Package pipeline wires loading, merging, classification and the sinks
// into the one-shot cold-spot run.
package pipeline

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/coldspot-cli/internal/coldspot"
	"github.com/sells-group/coldspot-cli/internal/config"
	"github.com/sells-group/coldspot-cli/internal/export"
	"github.com/sells-group/coldspot-cli/internal/fetcher"
	"github.com/sells-group/coldspot-cli/internal/loader"
	"github.com/sells-group/coldspot-cli/internal/merge"
	"github.com/sells-group/coldspot-cli/internal/model"
	"github.com/sells-group/coldspot-cli/internal/store"
)

// Options configures a pipeline run.
type Options struct {
	SalesPath   string
	InfoPath    string
	ChangePath  string
	Table       fetcher.TableOptions
	Merge       merge.Options
	Preset      string
	Thresholds  coldspot.Thresholds
	JSONPath    string
	RejectsPath string
}

// OptionsFromConfig resolves thresholds and input settings from configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	th, err := coldspot.ResolveThresholds(cfg.Thresholds)
	if err != nil {
		return Options{}, err
	}
	delim, _ := utf8.DecodeRuneInString(cfg.Input.Delimiter)
	if delim == utf8.RuneError {
		delim = ','
	}
	preset := cfg.Thresholds.Preset
	if preset == "" {
		preset = coldspot.PresetDefault
	}
	return Options{
		SalesPath:  cfg.Input.SalesPath,
		InfoPath:   cfg.Input.InfoPath,
		ChangePath: cfg.Input.ChangePath,
		Table: fetcher.TableOptions{
			Encoding:  cfg.Input.Encoding,
			Delimiter: delim,
			Sheet:     cfg.Input.Sheet,
			Member:    cfg.Input.Member,
			Remote: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
				Timeout:    cfg.Input.Fetch.Timeout,
				MaxRetries: cfg.Input.Fetch.MaxRetries,
				RatePerSec: cfg.Input.Fetch.RatePerSec,
			}),
		},
		Merge: merge.Options{
			InfoKey:   cfg.Merge.InfoKey,
			ChangeKey: cfg.Merge.ChangeKey,
		},
		Preset:      preset,
		Thresholds:  th,
		JSONPath:    cfg.Output.JSONPath,
		RejectsPath: cfg.Output.RejectsPath,
	}, nil
}

// Inputs holds the three parsed exports.
type Inputs struct {
	Sales  *loader.SalesSet
	Info   *loader.InfoSet
	Change *loader.ChangeSet
}

// Report describes a completed run.
type Report struct {
	RunID      string
	Thresholds coldspot.Thresholds
	Merge      *merge.Result
	Result     *coldspot.Result
	Persisted  int64
	Exported   int
	Duration   time.Duration
}

// RunResult returns the counts recorded in the run log.
func (r *Report) RunResult() model.RunResult {
	res := model.RunResult{}
	if r.Merge != nil {
		res.Merged = int64(len(r.Merge.Records))
	}
	if r.Result != nil {
		res.Classified = int64(len(r.Result.Classified))
		res.Rejected = int64(len(r.Result.Rejected))
		res.ColdSpots = int64(r.Result.ColdCount())
	}
	return res
}

// Load reads the three exports concurrently. The first failure cancels the
// remaining reads.
func Load(ctx context.Context, opts Options) (*Inputs, error) {
	in := &Inputs{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s, err := loader.LoadSales(gctx, opts.SalesPath, opts.Table)
		in.Sales = s
		return eris.Wrap(err, "pipeline: load sales")
	})
	g.Go(func() error {
		i, err := loader.LoadInfo(gctx, opts.InfoPath, opts.Table, opts.Merge.InfoKey == merge.InfoKeyCode)
		in.Info = i
		return eris.Wrap(err, "pipeline: load info")
	})
	g.Go(func() error {
		c, err := loader.LoadChange(gctx, opts.ChangePath, opts.Table)
		in.Change = c
		return eris.Wrap(err, "pipeline: load change")
	})

	if err := g.Wait(); err != nil {
		return nil, stageError(StageLoad, err)
	}
	zap.L().Info("pipeline: inputs loaded",
		zap.Int("sales", len(in.Sales.Records)),
		zap.Int("info", len(in.Info.Records)),
		zap.Int("change", len(in.Change.Records)),
	)
	return in, nil
}

// Classify loads, merges and classifies without touching any sink.
func Classify(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	rep := &Report{Thresholds: opts.Thresholds}

	var in *Inputs
	if err := trackStage(StageLoad, func() (err error) {
		in, err = Load(ctx, opts)
		return err
	}); err != nil {
		return nil, err
	}

	if err := trackStage(StageMerge, func() (err error) {
		rep.Merge, err = merge.Merge(in.Sales, in.Info, in.Change, opts.Merge)
		return err
	}); err != nil {
		return nil, err
	}

	if err := trackStage(StageCompute, func() error {
		if err := opts.Thresholds.Validate(); err != nil {
			return err
		}
		rep.Result = coldspot.Classify(rep.Merge.Records, opts.Thresholds)
		return nil
	}); err != nil {
		return nil, err
	}
	logRejections(rep.Result)

	rep.Duration = time.Since(start)
	return rep, nil
}

// Run executes the full pipeline: classify, stage the JSON artifacts,
// replace the table, then move the artifacts into place. The run is recorded
// in the store's run log.
func Run(ctx context.Context, st store.Store, opts Options) (*Report, error) {
	start := time.Now()
	log := zap.L().With(zap.String("preset", opts.Preset))

	run, err := st.StartRun(ctx, opts.Preset, opts.Thresholds.String())
	if err != nil {
		return nil, stageError(StagePersist, err)
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting run", zap.String("thresholds", opts.Thresholds.String()))

	fail := func(err error) error {
		if failErr := st.FailRun(ctx, run.ID, err.Error()); failErr != nil {
			log.Warn("pipeline: failed to record run failure", zap.Error(failErr))
		}
		return err
	}

	rep, err := Classify(ctx, opts)
	if err != nil {
		return nil, fail(err)
	}
	rep.RunID = run.ID

	if err := trackStage(StagePersist, func() error {
		return persist(ctx, st, opts, rep)
	}); err != nil {
		return nil, fail(err)
	}

	if err := st.CompleteRun(ctx, run.ID, rep.RunResult()); err != nil {
		log.Warn("pipeline: failed to record run completion", zap.Error(err))
	}

	rep.Duration = time.Since(start)
	sum := coldspot.Summarize(rep.Result.Classified, 5)
	log.Info("pipeline: run complete",
		zap.Int64("classified", sum.Total),
		zap.Int64("cold_spots", sum.ColdSpots),
		zap.Float64("cold_ratio", sum.ColdRatio),
		zap.Int("rejected", len(rep.Result.Rejected)),
		zap.Any("top_regions", sum.Regions),
		zap.Any("top_industries", sum.Industries),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// persist stages the JSON artifacts, replaces the table, then renames the
// artifacts into place. An artifact that cannot be encoded or staged fails
// the run before the table is touched.
func persist(ctx context.Context, st store.Store, opts Options, rep *Report) error {
	var staged []*export.Staged
	defer func() {
		for _, s := range staged {
			s.Discard()
		}
	}()

	if opts.JSONPath != "" {
		s, err := export.StageColdSpots(opts.JSONPath, rep.Result.Classified)
		if err != nil {
			return err
		}
		staged = append(staged, s)
	}
	if opts.RejectsPath != "" {
		s, err := export.StageRejections(opts.RejectsPath, rep.Result.Rejected)
		if err != nil {
			return err
		}
		staged = append(staged, s)
	}

	n, err := st.ReplaceColdSpots(ctx, rep.Result.Classified, time.Now().UTC())
	if err != nil {
		return err
	}
	rep.Persisted = n

	for _, s := range staged {
		if err := s.Commit(); err != nil {
			return err
		}
		if s.Path == opts.JSONPath {
			rep.Exported = s.Count
		}
	}
	return nil
}

// trackStage runs fn, logs its duration and attributes any error to stage.
func trackStage(stage Stage, fn func() error) error {
	start := time.Now()
	err := stageError(stage, fn())
	duration := time.Since(start).Milliseconds()

	if err != nil {
		zap.L().Error("pipeline: stage failed",
			zap.String("stage", string(stage)),
			zap.String("kind", string(KindOf(err))),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return err
	}
	zap.L().Info("pipeline: stage complete",
		zap.String("stage", string(stage)),
		zap.Int64("duration_ms", duration),
	)
	return nil
}

func logRejections(res *coldspot.Result) {
	if len(res.Rejected) == 0 {
		return
	}
	fields := make([]zap.Field, 0, 8)
	fields = append(fields, zap.Int("rejected", len(res.Rejected)))
	for reason, n := range res.RejectCounts() {
		fields = append(fields, zap.Int(string(reason), n))
	}
	zap.L().Warn("pipeline: districts rejected from classification", fields...)
}
