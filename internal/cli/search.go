package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rentcrunch/internal/adapters/observability"
	"rentcrunch/internal/app"
	"rentcrunch/internal/bootstrap"
	"rentcrunch/internal/domain"
	"rentcrunch/internal/shared"
)

type searchFlags struct {
	location  string
	minPrice  string
	maxPrice  string
	beds      string
	baths     string
	homeTypes []string
	sortKey   string
	sortDir   string
	limit     int
	timeout   time.Duration
	verbose   bool
}

func newSearchCmd(rf *rootFlags) *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one search and print the ranked results",
		Example: `  crunch search --location "Austin, TX" --max-price 400000 --beds 3
  crunch search --location "123 Main St, Springfield" --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, rf, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.location, "location", "l", "", "city, ZIP or street address (required)")
	fl.StringVar(&f.minPrice, "min-price", "", "minimum list price")
	fl.StringVar(&f.maxPrice, "max-price", "", "maximum list price")
	fl.StringVar(&f.beds, "beds", "", "minimum bedrooms")
	fl.StringVar(&f.baths, "baths", "", "minimum bathrooms")
	fl.StringSliceVar(&f.homeTypes, "type", nil, "home types to include (repeatable)")
	fl.StringVar(&f.sortKey, "sort", "score", "sort key (price|ratio|cashflow|score|beds|baths|area|days_on_market|rent|address)")
	fl.StringVar(&f.sortDir, "dir", "desc", "sort direction (asc|desc)")
	fl.IntVar(&f.limit, "limit", 25, "maximum rows to print (0 for all)")
	fl.DurationVar(&f.timeout, "timeout", 2*time.Minute, "give up after this long")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log progress to stderr")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

type searchOutput struct {
	Generation domain.Generation   `json:"generation"`
	State      domain.SessionState `json:"state"`
	Degraded   bool                `json:"degraded"`
	Total      int                 `json:"total"`
	Received   int                 `json:"received"`
	Items      []app.Analysis      `json:"items"`
}

func runSearch(cmd *cobra.Command, rf *rootFlags, f *searchFlags) error {
	cfg, err := shared.Load()
	if err != nil {
		return err
	}
	level := zerolog.WarnLevel
	if f.verbose {
		level = zerolog.InfoLevel
	}
	log.Logger = observability.NewLoggerTo(os.Stderr, "dev").Level(level)

	filters, err := app.ParseFilters(f.minPrice, f.maxPrice, f.beds, f.baths, f.homeTypes)
	if err != nil {
		return err
	}
	key, err := app.ParseSortKey(f.sortKey)
	if err != nil {
		return err
	}
	dir, err := app.ParseSortDirection(f.sortDir)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	deps, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	session := deps.NewSession(ctx, cfg)
	session.Start(ctx)
	defer session.Close()

	if err := session.SetSortConfig(domain.SortConfig{Key: key, Direction: dir}); err != nil {
		return err
	}
	gen, err := session.StartSearch(f.location, filters)
	if err != nil {
		return err
	}
	snap, err := session.Wait(ctx, gen)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("search did not finish within %s", f.timeout)
		}
		return err
	}

	props := snap.Properties
	if f.limit > 0 && f.limit < len(props) {
		props = props[:f.limit]
	}
	out := searchOutput{
		Generation: snap.Generation,
		State:      snap.State,
		Degraded:   snap.Degraded,
		Total:      snap.Total,
		Received:   len(snap.Properties),
		Items:      app.AnalyzeAll(props, session.Overrides(), snap.Settings),
	}

	w := cmd.OutOrStdout()
	if rf.isJSON() {
		return printJSON(w, out)
	}
	if err := printAnalysisTable(w, out.Items); err != nil {
		return err
	}
	printFooter(w, out)
	return nil
}
