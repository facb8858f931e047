// Package merge joins sales rows with district info and change indicators.
package merge

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coldspot-cli/internal/loader"
	"github.com/sells-group/coldspot-cli/internal/model"
)

// Info join keys.
const (
	InfoKeyName = "name"
	InfoKeyCode = "code"
)

// Change join keys.
const (
	ChangeKeyAuto       = "auto"
	ChangeKeyCode       = "code"
	ChangeKeyCodePeriod = "code_period"
)

// ErrKeyUnavailable reports that a configured join key is absent from an input.
var ErrKeyUnavailable = eris.New("merge: join key unavailable")

// Options selects the join keys.
type Options struct {
	InfoKey   string
	ChangeKey string
}

// Result is the merged batch with join diagnostics.
type Result struct {
	Records         []model.MergedDistrict
	ChangeKey       string // resolved change key
	UnmatchedSales  int    // sales rows with no info row
	UnmatchedChange int    // merged rows with no change row
	DuplicateInfo   int    // info rows ignored because their key was already seen
}

// Merge inner-joins sales with info and left-joins the result with change
// indicators. Sales order is preserved and every sales row yields at most one
// merged row.
func Merge(sales *loader.SalesSet, info *loader.InfoSet, change *loader.ChangeSet, opts Options) (*Result, error) {
	infoKey := opts.InfoKey
	if infoKey == "" {
		infoKey = InfoKeyName
	}
	if infoKey != InfoKeyName && infoKey != InfoKeyCode {
		return nil, eris.Errorf("merge: unknown info key %q", infoKey)
	}
	if infoKey == InfoKeyCode && !info.HasCode {
		return nil, eris.Wrap(ErrKeyUnavailable, "merge: info export has no district code column")
	}

	changeKey, err := resolveChangeKey(opts.ChangeKey, sales.HasPeriod, change.HasPeriod)
	if err != nil {
		return nil, err
	}

	infoIdx, dupes := indexInfo(info.Records, infoKey)
	changeIdx := indexChange(change.Records, changeKey)

	res := &Result{
		Records:       make([]model.MergedDistrict, 0, len(sales.Records)),
		ChangeKey:     changeKey,
		DuplicateInfo: dupes,
	}
	for _, s := range sales.Records {
		k := s.DistrictName
		if infoKey == InfoKeyCode {
			k = s.DistrictCode
		}
		in, ok := infoIdx[k]
		if !ok {
			res.UnmatchedSales++
			continue
		}

		m := model.MergedDistrict{SalesRecord: s, InfoRecord: in}
		if ch, ok := changeIdx[changeLookupKey(s.DistrictCode, s.Period, changeKey)]; ok {
			m.ChangeRecord = ch
		} else {
			res.UnmatchedChange++
		}
		res.Records = append(res.Records, m)
	}

	zap.L().Info("merge: joined inputs",
		zap.Int("sales", len(sales.Records)),
		zap.Int("merged", len(res.Records)),
		zap.String("info_key", infoKey),
		zap.String("change_key", changeKey),
		zap.Int("unmatched_sales", res.UnmatchedSales),
		zap.Int("unmatched_change", res.UnmatchedChange),
		zap.Int("duplicate_info", res.DuplicateInfo),
	)
	return res, nil
}

func resolveChangeKey(key string, salesPeriod, changePeriod bool) (string, error) {
	switch key {
	case "", ChangeKeyAuto:
		if salesPeriod && changePeriod {
			return ChangeKeyCodePeriod, nil
		}
		return ChangeKeyCode, nil
	case ChangeKeyCode:
		return ChangeKeyCode, nil
	case ChangeKeyCodePeriod:
		if !salesPeriod || !changePeriod {
			return "", eris.Wrap(ErrKeyUnavailable, "merge: code_period join needs a period column in both sales and change exports")
		}
		return ChangeKeyCodePeriod, nil
	default:
		return "", eris.Errorf("merge: unknown change key %q", key)
	}
}

// indexInfo keeps the first info row per key.
func indexInfo(records []model.InfoRecord, key string) (map[string]model.InfoRecord, int) {
	idx := make(map[string]model.InfoRecord, len(records))
	dupes := 0
	for _, r := range records {
		k := r.InfoName
		if key == InfoKeyCode {
			k = r.InfoCode
		}
		if k == "" {
			continue
		}
		if _, seen := idx[k]; seen {
			dupes++
			continue
		}
		idx[k] = r
	}
	return idx, dupes
}

// indexChange keys change rows by code or code+period. Keyed by code alone,
// the row with the latest period wins; otherwise the first row per key wins.
func indexChange(records []model.ChangeRecord, key string) map[string]model.ChangeRecord {
	idx := make(map[string]model.ChangeRecord, len(records))
	for _, r := range records {
		k := changeLookupKey(r.ChangeCode, r.ChangePeriod, key)
		prev, seen := idx[k]
		if !seen || (key == ChangeKeyCode && laterPeriod(r.ChangePeriod, prev.ChangePeriod)) {
			idx[k] = r
		}
	}
	return idx
}

func changeLookupKey(code, period, key string) string {
	if key == ChangeKeyCodePeriod {
		return code + "\x00" + period
	}
	return code
}

// laterPeriod compares quarter codes such as "20241"; longer codes sort later.
func laterPeriod(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}
