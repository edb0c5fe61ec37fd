package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/HariharPal/LC-Fetch/pkg/collector"
	"github.com/HariharPal/LC-Fetch/pkg/export"
	"github.com/HariharPal/LC-Fetch/pkg/leetcode"
	"github.com/HariharPal/LC-Fetch/pkg/search"
	"github.com/HariharPal/LC-Fetch/pkg/table"
	"github.com/spf13/cobra"
)

// rankingOptions are the flags of the ranking command.
type rankingOptions struct {
	Contest     string
	Region      string
	MinPage     int
	MaxPage     int
	PageWorkers int
	WithSchools bool
	Output      string
	NoBOM       bool
	SortColumns bool
	Preview     int
}

var rankingOpts rankingOptions

// rankingCmd represents the ranking command
var rankingCmd = &cobra.Command{
	Use:   "ranking",
	Short: "Collect a page range of a contest ranking",
	Long: `Collect the ranking pages of a contest and save them as one table.

Pages that keep failing after all attempts are skipped and counted. With
--with-schools every ranked user is looked up and their school is joined
onto the ranking row.`,
	Example: `  lcfetch ranking --contest weekly-contest-400 --min-page 1 --max-page 20
  lcfetch ranking --contest biweekly-contest-130 --max-page 5 --with-schools -o ranks.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := loadSettings()
		rt, err := newRuntime(cmd.Context(), s)
		if err != nil {
			return err
		}
		defer rt.Close()
		return runRanking(cmd.Context(), cmd.OutOrStdout(), rt, rankingOpts)
	},
}

func init() {
	rootCmd.AddCommand(rankingCmd)

	rankingCmd.Flags().StringVar(&rankingOpts.Contest, "contest", "", "contest slug, e.g. weekly-contest-400 (required)")
	rankingCmd.Flags().StringVar(&rankingOpts.Region, "region", leetcode.DefaultRegion, "ranking region")
	rankingCmd.Flags().IntVar(&rankingOpts.MinPage, "min-page", 1, "first page")
	rankingCmd.Flags().IntVar(&rankingOpts.MaxPage, "max-page", 1, "last page, inclusive")
	rankingCmd.Flags().IntVar(&rankingOpts.PageWorkers, "page-workers", 1, "pages fetched concurrently; rows keep page order")
	rankingCmd.Flags().BoolVar(&rankingOpts.WithSchools, "with-schools", false, "look up the school of every ranked user")
	rankingCmd.Flags().StringVarP(&rankingOpts.Output, "output", "o", "", "output file, .csv .json or .txt (default leetcode_<contest>_page_<min>_to_<max>.csv)")
	rankingCmd.Flags().BoolVar(&rankingOpts.NoBOM, "no-bom", false, "omit the UTF-8 byte order mark from CSV output")
	rankingCmd.Flags().BoolVar(&rankingOpts.SortColumns, "sort-columns", false, "order columns lexically instead of first appearance")
	rankingCmd.Flags().IntVar(&rankingOpts.Preview, "preview", 10, "rows to print after saving (0 disables)")
	_ = rankingCmd.MarkFlagRequired("contest")
}

// previewColumns are shown in ranking previews when present.
var previewColumns = []string{"rank", "username", "country_name", "score", "finish_time", "school", "page"}

func runRanking(ctx context.Context, out io.Writer, rt *runtime, opts rankingOptions) error {
	if opts.Contest == "" {
		return fmt.Errorf("contest is required")
	}

	cfg := rt.settings.engineConfig()
	cfg.MinPage = opts.MinPage
	cfg.MaxPage = opts.MaxPage
	cfg.PageWorkers = opts.PageWorkers

	bar := newProgress(rt.settings.Quiet, opts.MaxPage-opts.MinPage+1, "pages")
	engine, err := rt.engine(cfg, collector.WithPageField(search.FieldPage), collector.WithSink(bar.sink))
	if err != nil {
		return err
	}

	fetcher := &leetcode.RankingFetcher{
		Transport: rt.client,
		BaseURL:   rt.settings.BaseURL,
		Contest:   opts.Contest,
		Region:    opts.Region,
	}
	tbl, snap, err := engine.CollectPages(ctx, fetcher, leetcode.RankingDecoder{})
	bar.finish()
	printSummary(out, "Pages", snap)
	if err != nil {
		return saveOnInterrupt(out, opts, tbl, err)
	}

	if opts.WithSchools && tbl.Len() > 0 {
		tbl, err = augmentSchools(ctx, out, rt, tbl)
		if err != nil {
			return saveOnInterrupt(out, opts, tbl, err)
		}
	}

	return finishRanking(out, opts, tbl)
}

// augmentSchools left-joins the school of every ranked user onto tbl.
func augmentSchools(ctx context.Context, out io.Writer, rt *runtime, tbl table.Table) (table.Table, error) {
	bar := newProgress(rt.settings.Quiet, tbl.Len(), "schools")
	engine, err := rt.engine(rt.settings.engineConfig(), collector.WithSink(bar.sink))
	if err != nil {
		return tbl, err
	}

	users := &leetcode.UserFetcher{
		Transport: rt.client,
		BaseURL:   rt.settings.BaseURL,
		Query:     leetcode.SchoolQuery,
	}
	joined, snap, err := engine.AugmentRows(ctx, tbl.Records(), "user_slug", users, leetcode.SchoolDecoder{}, leetcode.SchoolColumns...)
	bar.finish()
	printSummary(out, "Schools", snap)
	return joined, err
}

func finishRanking(out io.Writer, opts rankingOptions, tbl table.Table) error {
	if opts.SortColumns {
		tbl = tbl.SortColumns()
	}
	path := opts.Output
	if path == "" {
		path = export.DefaultRankingFilename(opts.Contest, opts.MinPage, opts.MaxPage)
	}
	if err := saveTable(out, path, tbl, export.Options{BOM: !opts.NoBOM}); err != nil {
		return err
	}
	if opts.Preview > 0 && tbl.Len() > 0 {
		return printTable(out, tbl, previewColumns, opts.Preview)
	}
	return nil
}

// saveOnInterrupt keeps what was collected before a cancellation.
func saveOnInterrupt(out io.Writer, opts rankingOptions, tbl table.Table, cause error) error {
	if tbl.Len() > 0 {
		opts.Preview = 0
		if err := finishRanking(out, opts, tbl); err != nil {
			return fmt.Errorf("%w (saving partial results: %v)", cause, err)
		}
	}
	return cause
}
