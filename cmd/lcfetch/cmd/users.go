package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/HariharPal/LC-Fetch/pkg/collector"
	"github.com/HariharPal/LC-Fetch/pkg/export"
	"github.com/HariharPal/LC-Fetch/pkg/fetcher"
	"github.com/HariharPal/LC-Fetch/pkg/leetcode"
	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/HariharPal/LC-Fetch/pkg/report"
	"github.com/HariharPal/LC-Fetch/pkg/table"
	"github.com/spf13/cobra"
)

// Lookup modes of the users command.
const (
	modeProfile = "profile"
	modeSchool  = "school"
)

// usersOptions are the flags of the users command.
type usersOptions struct {
	Input       string
	KeyField    string
	Mode        string
	QueryFile   string
	SkipMissing bool
	Output      string
	NoBOM       bool
	SortColumns bool
	Preview     int
}

var usersOpts usersOptions

// usersCmd represents the users command
var usersCmd = &cobra.Command{
	Use:   "users [slug...]",
	Short: "Look up many user profiles concurrently",
	Long: `Look up user profiles by slug, either given as arguments or read from the
key column of a CSV or JSON file.

With --input every row of the file is kept and the fetched fields are joined
onto it; rows whose lookup fails keep empty cells. With slugs as arguments
there is one row per slug, or none for missing users with --skip-missing.`,
	Example: `  lcfetch users alice bob carol -o users.csv
  lcfetch users --input leetcode_weekly-contest-400_page_1_to_5.csv --key-field user_slug --mode school`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := loadSettings()
		rt, err := newRuntime(cmd.Context(), s)
		if err != nil {
			return err
		}
		defer rt.Close()
		return runUsers(cmd.Context(), cmd.OutOrStdout(), rt, usersOpts, args)
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)

	usersCmd.Flags().StringVarP(&usersOpts.Input, "input", "i", "", "CSV or JSON file with one row per user")
	usersCmd.Flags().StringVar(&usersOpts.KeyField, "key-field", "username", "column holding the user slug")
	usersCmd.Flags().StringVar(&usersOpts.Mode, "mode", modeProfile, "lookup mode: profile or school")
	usersCmd.Flags().StringVar(&usersOpts.QueryFile, "query-file", "", "custom GraphQL profile query declaring $username (profile mode)")
	usersCmd.Flags().BoolVar(&usersOpts.SkipMissing, "skip-missing", false, "drop rows of missing users (slug arguments only)")
	usersCmd.Flags().StringVarP(&usersOpts.Output, "output", "o", "users.csv", "output file, .csv .json or .txt")
	usersCmd.Flags().BoolVar(&usersOpts.NoBOM, "no-bom", false, "omit the UTF-8 byte order mark from CSV output")
	usersCmd.Flags().BoolVar(&usersOpts.SortColumns, "sort-columns", false, "order columns lexically instead of first appearance")
	usersCmd.Flags().IntVar(&usersOpts.Preview, "preview", 10, "rows to print after saving (0 disables)")
}

// userLookup returns the query, decoder and guaranteed columns of a mode.
// A query file replaces the built-in profile query.
func userLookup(mode, queryFile string) (string, fetcher.KeyDecoder, []string, error) {
	switch mode {
	case modeProfile, "":
		if queryFile == "" {
			return leetcode.ProfileQuery, leetcode.ProfileDecoder{}, leetcode.ProfileColumns, nil
		}
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return "", nil, nil, fmt.Errorf("read query file: %w", err)
		}
		query := string(data)
		if err := leetcode.ValidateQuery(query); err != nil {
			return "", nil, nil, fmt.Errorf("%s: %w", queryFile, err)
		}
		return query, leetcode.ProfileDecoder{}, []string{"username"}, nil
	case modeSchool:
		if queryFile != "" {
			return "", nil, nil, fmt.Errorf("--query-file only applies to %s mode", modeProfile)
		}
		return leetcode.SchoolQuery, leetcode.SchoolDecoder{}, leetcode.SchoolColumns, nil
	default:
		return "", nil, nil, fmt.Errorf("unknown mode %q (want %s or %s)", mode, modeProfile, modeSchool)
	}
}

func runUsers(ctx context.Context, out io.Writer, rt *runtime, opts usersOptions, slugs []string) error {
	query, decoder, columns, err := userLookup(opts.Mode, opts.QueryFile)
	if err != nil {
		return err
	}
	if opts.Input == "" && len(slugs) == 0 {
		return fmt.Errorf("give user slugs as arguments or an --input file")
	}
	if opts.Input != "" && len(slugs) > 0 {
		return fmt.Errorf("--input and slug arguments are mutually exclusive")
	}

	var base []record.Record
	keys := make([]record.Key, 0, len(slugs))
	for _, s := range slugs {
		keys = append(keys, record.Key(s))
	}
	if opts.Input != "" {
		base, err = export.Load(opts.Input)
		if err != nil {
			return err
		}
		keys = export.Keys(base, opts.KeyField)
	}

	bar := newProgress(rt.settings.Quiet, len(keys), "users")
	engine, err := rt.engine(rt.settings.engineConfig(), collector.WithSink(bar.sink))
	if err != nil {
		return err
	}
	users := &leetcode.UserFetcher{
		Transport: rt.client,
		BaseURL:   rt.settings.BaseURL,
		Query:     query,
	}

	var (
		tbl  table.Table
		snap report.Snapshot
	)
	if base != nil {
		tbl, snap, err = engine.AugmentRows(ctx, base, opts.KeyField, users, decoder, columns...)
	} else {
		missing := table.MissingPlaceholder
		if opts.SkipMissing {
			missing = table.MissingSkip
		}
		tbl, snap, err = engine.KeysTable(ctx, keys, opts.KeyField, missing, users, decoder, columns...)
	}
	bar.finish()
	printSummary(out, "Users", snap)

	if tbl.Len() > 0 || err == nil {
		if opts.SortColumns {
			tbl = tbl.SortColumns()
		}
		if serr := saveTable(out, opts.Output, tbl, export.Options{BOM: !opts.NoBOM}); serr != nil {
			if err != nil {
				return fmt.Errorf("%w (saving partial results: %v)", err, serr)
			}
			return serr
		}
	}
	if err != nil {
		return err
	}
	if opts.Preview > 0 && tbl.Len() > 0 {
		return printTable(out, tbl, []string{opts.KeyField, "real_name", "country", "school_college", "school", "ranking", "all_solved"}, opts.Preview)
	}
	return nil
}
