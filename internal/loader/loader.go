package loader

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coldspot-cli/internal/fetcher"
	"github.com/sells-group/coldspot-cli/internal/model"
)

// ErrInputNotFound reports that an input file does not exist.
var ErrInputNotFound = eris.New("loader: input not found")

// SchemaError reports required columns missing from an input header.
type SchemaError struct {
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return "loader: " + e.Path + " is missing required columns: " + strings.Join(e.Missing, ", ")
}

// SalesSet is a parsed sales export.
type SalesSet struct {
	Records   []model.SalesRecord
	HasPeriod bool
	BadCells  int
}

// InfoSet is a parsed district-info export.
type InfoSet struct {
	Records []model.InfoRecord
	HasCode bool
}

// ChangeSet is a parsed change-indicator export.
type ChangeSet struct {
	Records   []model.ChangeRecord
	HasPeriod bool
	BadCells  int
}

// Read stats the path and reads it as a table. A missing local file or a
// remote 404 wraps ErrInputNotFound.
func Read(ctx context.Context, path string, opts fetcher.TableOptions) (*fetcher.Table, error) {
	if !fetcher.IsRemote(path) {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, eris.Wrap(ErrInputNotFound, path)
			}
			return nil, eris.Wrapf(err, "loader: stat %s", path)
		}
	}
	t, err := fetcher.ReadTable(ctx, path, opts)
	if errors.Is(err, fetcher.ErrNotFound) {
		return nil, eris.Wrap(ErrInputNotFound, path)
	}
	return t, err
}

// LoadSales reads and parses the estimated-sales export.
func LoadSales(ctx context.Context, path string, opts fetcher.TableOptions) (*SalesSet, error) {
	t, err := Read(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return ParseSales(t)
}

// LoadInfo reads and parses the district-info export.
func LoadInfo(ctx context.Context, path string, opts fetcher.TableOptions, requireCode bool) (*InfoSet, error) {
	t, err := Read(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return ParseInfo(t, requireCode)
}

// LoadChange reads and parses the change-indicator export.
func LoadChange(ctx context.Context, path string, opts fetcher.TableOptions) (*ChangeSet, error) {
	t, err := Read(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return ParseChange(t)
}

// ParseSales maps a sales table onto records. Rows with neither a district
// code nor a district name are skipped.
func ParseSales(t *fetcher.Table) (*SalesSet, error) {
	h := indexHeader(t.Header)
	cols := []column{
		colDistrictCode, colDistrictName, colPeriod, colIndustryCode,
		colIndustryName, colSalesAmount, colSalesCount,
	}
	cols = append(cols, colBuckets[:]...)
	idx, missing := h.resolve(cols...)
	if len(missing) > 0 {
		return nil, &SchemaError{Path: t.Path, Missing: missing}
	}

	set := &SalesSet{
		Records:   make([]model.SalesRecord, 0, len(t.Rows)),
		HasPeriod: idx[2] >= 0,
	}
	for _, row := range t.Rows {
		r := model.SalesRecord{
			DistrictCode: cell(row, idx[0]),
			DistrictName: cell(row, idx[1]),
			Period:       cell(row, idx[2]),
			IndustryCode: cell(row, idx[3]),
			IndustryName: cell(row, idx[4]),
			SalesAmount:  parseFloatPtr(cell(row, idx[5]), &set.BadCells),
			SalesCount:   parseCountPtr(cell(row, idx[6]), &set.BadCells),
		}
		if r.DistrictCode == "" && r.DistrictName == "" {
			continue
		}
		for b := 0; b < model.NumTimeBuckets; b++ {
			r.SetBucket(model.TimeBucket(b), parseFloatPtr(cell(row, idx[7+b]), &set.BadCells))
		}
		set.Records = append(set.Records, r)
	}

	if set.BadCells > 0 {
		zap.L().Warn("loader: unparseable numeric cells treated as missing",
			zap.String("path", t.Path), zap.Int("cells", set.BadCells))
	}
	return set, nil
}

// ParseInfo maps a district-info table onto records. When requireCode is set
// the district code column becomes mandatory.
func ParseInfo(t *fetcher.Table, requireCode bool) (*InfoSet, error) {
	h := indexHeader(t.Header)
	code := colInfoCode
	code.required = requireCode
	idx, missing := h.resolve(colInfoName, code, colRegionName, colDistrictType, colDongName)
	if len(missing) > 0 {
		return nil, &SchemaError{Path: t.Path, Missing: missing}
	}

	set := &InfoSet{
		Records: make([]model.InfoRecord, 0, len(t.Rows)),
		HasCode: idx[1] >= 0,
	}
	for _, row := range t.Rows {
		r := model.InfoRecord{
			InfoName:     cell(row, idx[0]),
			InfoCode:     cell(row, idx[1]),
			RegionName:   cell(row, idx[2]),
			DistrictType: cell(row, idx[3]),
			DongName:     cell(row, idx[4]),
		}
		if r.InfoName == "" && r.InfoCode == "" {
			continue
		}
		set.Records = append(set.Records, r)
	}
	return set, nil
}

// ParseChange maps a change-indicator table onto records.
func ParseChange(t *fetcher.Table) (*ChangeSet, error) {
	h := indexHeader(t.Header)
	idx, missing := h.resolve(colChangeCode, colPeriod, colOperating, colClosed)
	if len(missing) > 0 {
		return nil, &SchemaError{Path: t.Path, Missing: missing}
	}

	set := &ChangeSet{
		Records:   make([]model.ChangeRecord, 0, len(t.Rows)),
		HasPeriod: idx[1] >= 0,
	}
	for _, row := range t.Rows {
		r := model.ChangeRecord{
			ChangeCode:         cell(row, idx[0]),
			ChangePeriod:       cell(row, idx[1]),
			AvgMonthsOperating: parseFloatPtr(cell(row, idx[2]), &set.BadCells),
			AvgMonthsClosed:    parseFloatPtr(cell(row, idx[3]), &set.BadCells),
		}
		if r.ChangeCode == "" {
			continue
		}
		set.Records = append(set.Records, r)
	}

	if set.BadCells > 0 {
		zap.L().Warn("loader: unparseable numeric cells treated as missing",
			zap.String("path", t.Path), zap.Int("cells", set.BadCells))
	}
	return set, nil
}
