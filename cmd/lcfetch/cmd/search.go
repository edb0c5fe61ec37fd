package cmd

import (
	"fmt"
	"io"

	"github.com/HariharPal/LC-Fetch/pkg/export"
	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/HariharPal/LC-Fetch/pkg/search"
	"github.com/HariharPal/LC-Fetch/pkg/table"
	"github.com/spf13/cobra"
)

// searchOptions are the flags of the search command.
type searchOptions struct {
	Mode    string
	Query   string
	MinRank int
	MaxRank int
	Top     int
	Output  string
	Limit   int
}

var searchOpts searchOptions

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <file>",
	Short: "Search a saved ranking offline",
	Long: `Search a ranking previously saved by 'lcfetch ranking'.

Modes:
  contains     username contains --query (case-insensitive)
  starts-with  username starts with --query (case-insensitive)
  rank-range   --min-rank <= rank <= --max-rank, sorted by rank
  top          the --top best ranked rows`,
	Example: `  lcfetch search ranks.csv --mode contains --query neal
  lcfetch search ranks.csv --mode rank-range --min-rank 1 --max-rank 100 -o top100.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd.OutOrStdout(), args[0], searchOpts)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchOpts.Mode, "mode", string(search.ModeContains), "contains, starts-with, rank-range or top")
	searchCmd.Flags().StringVarP(&searchOpts.Query, "query", "q", "", "username fragment")
	searchCmd.Flags().IntVar(&searchOpts.MinRank, "min-rank", 1, "lowest rank for rank-range")
	searchCmd.Flags().IntVar(&searchOpts.MaxRank, "max-rank", 100, "highest rank for rank-range")
	searchCmd.Flags().IntVar(&searchOpts.Top, "top", search.DefaultTop, "rows for top")
	searchCmd.Flags().StringVarP(&searchOpts.Output, "output", "o", "", "also save the matches to this file")
	searchCmd.Flags().IntVar(&searchOpts.Limit, "limit", 50, "rows to print (0 prints all)")
}

// filterRows applies one search mode.
func filterRows(rows []record.Record, opts searchOptions) ([]record.Record, error) {
	switch search.Mode(opts.Mode) {
	case search.ModeContains:
		if opts.Query == "" {
			return nil, fmt.Errorf("--query is required for %s", opts.Mode)
		}
		return search.Contains(rows, opts.Query), nil
	case search.ModeStartsWith:
		if opts.Query == "" {
			return nil, fmt.Errorf("--query is required for %s", opts.Mode)
		}
		return search.StartsWith(rows, opts.Query), nil
	case search.ModeRankRange:
		if opts.MinRank > opts.MaxRank {
			return nil, fmt.Errorf("min rank %d is greater than max rank %d", opts.MinRank, opts.MaxRank)
		}
		return search.RankRange(rows, opts.MinRank, opts.MaxRank), nil
	case search.ModeTop:
		if opts.Top < 1 {
			return nil, fmt.Errorf("--top must be >= 1 (got %d)", opts.Top)
		}
		return search.Top(rows, opts.Top), nil
	default:
		return nil, fmt.Errorf("unknown search mode %q", opts.Mode)
	}
}

func runSearch(out io.Writer, path string, opts searchOptions) error {
	rows, err := export.Load(path)
	if err != nil {
		return err
	}
	matches, err := filterRows(rows, opts)
	if err != nil {
		return err
	}

	bold.Fprintf(out, "%d of %d rows match\n", len(matches), len(rows))
	if len(matches) == 0 {
		return nil
	}

	tbl := table.Merge(matches)
	if opts.Output != "" {
		if err := saveTable(out, opts.Output, tbl, export.Options{BOM: true}); err != nil {
			return err
		}
	}
	return printTable(out, tbl, previewColumns, opts.Limit)
}
