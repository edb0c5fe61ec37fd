package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/HariharPal/LC-Fetch/pkg/export"
	"github.com/HariharPal/LC-Fetch/pkg/leetcode"
	"github.com/HariharPal/LC-Fetch/pkg/record"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	userMode      string
	userQueryFile string
)

// userCmd represents the user command
var userCmd = &cobra.Command{
	Use:   "user <slug>",
	Short: "Show the profile of one user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := loadSettings()
		rt, err := newRuntime(cmd.Context(), s)
		if err != nil {
			return err
		}
		defer rt.Close()
		return runUser(cmd.Context(), cmd.OutOrStdout(), rt, userMode, userQueryFile, record.Key(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(userCmd)

	userCmd.Flags().StringVar(&userMode, "mode", modeProfile, "lookup mode: profile or school")
	userCmd.Flags().StringVar(&userQueryFile, "query-file", "", "custom GraphQL profile query declaring $username (profile mode)")
}

func runUser(ctx context.Context, out io.Writer, rt *runtime, mode, queryFile string, slug record.Key) error {
	query, decoder, _, err := userLookup(mode, queryFile)
	if err != nil {
		return err
	}
	engine, err := rt.engine(rt.settings.engineConfig())
	if err != nil {
		return err
	}
	users := &leetcode.UserFetcher{
		Transport: rt.client,
		BaseURL:   rt.settings.BaseURL,
		Query:     query,
	}

	res, err := engine.FetchKeys(ctx, []record.Key{slug}, users, decoder)
	if err != nil {
		return err
	}
	r := res.ByKey[slug]
	if !r.OK() {
		if errors.Is(r.Err, record.ErrNotFound) {
			yellow.Fprintf(out, "User %s not found\n", slug)
			return r.Err
		}
		return fmt.Errorf("look up %s: %w", slug, r.Err)
	}
	rec, _ := r.Record()

	bold.Fprintf(out, "%s\n", leetcode.ProfileURL(rt.settings.BaseURL, slug))
	tw := tablewriter.NewWriter(out)
	tw.Header("Field", "Value")
	for _, f := range rec.Fields() {
		v, _ := rec.Get(f)
		if err := tw.Append(f, export.Cell(v)); err != nil {
			return err
		}
	}
	return tw.Render()
}
