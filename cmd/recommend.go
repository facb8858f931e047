package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/coldspot-cli/internal/export"
	"github.com/sells-group/coldspot-cli/internal/model"
	"github.com/sells-group/coldspot-cli/internal/store"
)

var (
	recRegion   string
	recIndustry string
	recTime     string
	recOrder    string
	recLimit    int
	recFormat   string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "List cold spots for a region and industry, ranked by a time-of-day bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("query"); err != nil {
			return err
		}
		filter, err := buildRecommendFilter(recRegion, recIndustry, recTime, recOrder, recLimit)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := st.Recommend(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "recommend")
		}

		switch recFormat {
		case "json":
			if rows == nil {
				rows = []model.ClassifiedDistrict{}
			}
			return export.EncodeJSON(os.Stdout, rows)
		case "table", "":
			formatRecommendations(os.Stdout, filter.Bucket, rows)
			return nil
		default:
			return eris.Errorf("recommend: unknown format %q (want table or json)", recFormat)
		}
	},
}

func buildRecommendFilter(region, industry, bucket, order string, limit int) (store.RecommendFilter, error) {
	b, ok := model.ParseTimeBucket(strings.ToLower(strings.TrimSpace(bucket)))
	if !ok {
		return store.RecommendFilter{}, eris.Errorf("recommend: unknown time bucket %q (want one of %s)",
			bucket, strings.Join(model.TimeBucketNames(), ", "))
	}

	var asc bool
	switch strings.ToLower(order) {
	case "desc", "":
	case "asc":
		asc = true
	default:
		return store.RecommendFilter{}, eris.Errorf("recommend: unknown order %q (want asc or desc)", order)
	}

	if limit <= 0 {
		return store.RecommendFilter{}, eris.New("recommend: limit must be positive")
	}

	return store.RecommendFilter{
		Region:    strings.TrimSpace(region),
		Industry:  strings.TrimSpace(industry),
		Bucket:    b,
		Ascending: asc,
		Limit:     limit,
	}, nil
}

// formatRecommendations writes a tabular view of recommended districts to out.
func formatRecommendations(out io.Writer, bucket model.TimeBucket, rows []model.ClassifiedDistrict) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "DISTRICT\tREGION\tINDUSTRY\t%s\tCONVERSION\tREL_SALES\tTIME_RATIO\tQUALITY\n", strings.ToUpper(bucket.Column()))

	for i := range rows {
		r := &rows[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\t%.2f\t%.2f\t%.2f\n",
			r.DistrictName,
			r.RegionName,
			r.IndustryName,
			formatAmount(r.Buckets()[bucket]),
			r.Conversion,
			r.RelSales,
			r.TimeRatio,
			r.QualityScore,
		)
	}
	_ = w.Flush()
}

func formatAmount(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}

func init() {
	recommendCmd.Flags().StringVar(&recRegion, "region", "", "region name substring, e.g. 용산")
	recommendCmd.Flags().StringVar(&recIndustry, "industry", "", "industry name substring, e.g. 한식")
	recommendCmd.Flags().StringVar(&recTime, "time", "evening", "time bucket to rank by: "+strings.Join(model.TimeBucketNames(), ", ")+" or a column name")
	recommendCmd.Flags().StringVar(&recOrder, "order", "desc", "sort order: asc or desc")
	recommendCmd.Flags().IntVar(&recLimit, "limit", 10, "maximum rows to return")
	recommendCmd.Flags().StringVar(&recFormat, "format", "table", "output format: table or json")
	rootCmd.AddCommand(recommendCmd)
}
