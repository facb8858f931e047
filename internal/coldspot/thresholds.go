// Package coldspot derives district metrics and classifies cold spots.
package coldspot

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/coldspot-cli/internal/config"
)

// Thresholds are the four cut-offs used by the cold-spot rule.
type Thresholds struct {
	Conversion float64 `json:"conversion" yaml:"conversion"`
	RelSales   float64 `json:"rel_sales" yaml:"rel_sales"`
	Quality    float64 `json:"quality" yaml:"quality"`
	TimeRatio  float64 `json:"time_ratio" yaml:"time_ratio"`
}

const (
	PresetDefault = "default"
	PresetRelaxed = "relaxed"
)

var presets = map[string]Thresholds{
	PresetDefault: {Conversion: 5000, RelSales: 0.8, Quality: 0.6, TimeRatio: 3},
	PresetRelaxed: {Conversion: 8000, RelSales: 0.7, Quality: 0.5, TimeRatio: 2.5},
}

// DefaultThresholds returns the default preset.
func DefaultThresholds() Thresholds {
	return presets[PresetDefault]
}

// Preset looks up a named threshold preset.
func Preset(name string) (Thresholds, error) {
	t, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Thresholds{}, eris.Errorf("coldspot: unknown threshold preset %q (want one of %s)", name, strings.Join(PresetNames(), ", "))
	}
	return t, nil
}

// PresetNames returns the known preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ResolveThresholds starts from the configured preset and applies any
// per-value overrides, then validates the result.
func ResolveThresholds(c config.ThresholdConfig) (Thresholds, error) {
	name := c.Preset
	if name == "" {
		name = PresetDefault
	}
	t, err := Preset(name)
	if err != nil {
		return Thresholds{}, err
	}
	if c.Conversion != nil {
		t.Conversion = *c.Conversion
	}
	if c.RelSales != nil {
		t.RelSales = *c.RelSales
	}
	if c.Quality != nil {
		t.Quality = *c.Quality
	}
	if c.TimeRatio != nil {
		t.TimeRatio = *c.TimeRatio
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}

// Validate checks that every threshold is finite and non-negative.
func (t Thresholds) Validate() error {
	var errs []string
	for name, v := range map[string]float64{
		"conversion": t.Conversion,
		"rel_sales":  t.RelSales,
		"quality":    t.Quality,
		"time_ratio": t.TimeRatio,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, name+" must be finite")
		} else if v < 0 {
			errs = append(errs, name+" must be >= 0")
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("coldspot: invalid thresholds: %s", strings.Join(errs, "; "))
	}
	return nil
}

// String renders the thresholds compactly for logs and the run log.
func (t Thresholds) String() string {
	return fmt.Sprintf("conversion<%g rel_sales<%g quality>%g time_ratio>%g",
		t.Conversion, t.RelSales, t.Quality, t.TimeRatio)
}
