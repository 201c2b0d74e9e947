package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/strrl/telescope-dashboard/pkg/catalog"
	"github.com/strrl/telescope-dashboard/pkg/entry"
	"github.com/strrl/telescope-dashboard/pkg/querier"
)

const summaryWidth = 80

func searchCmd() *cobra.Command {
	var (
		req     querier.SearchRequest
		typ     string
		perPage int
		before  int64
		offset  int
		facets  string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search entries of one type",
		Example: `  telescoped search --type request --filters '{"statuses":["5xx"],"route_group":"api"}'
  telescoped search --type query --sort-by content.time --offset 50 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Type = entry.Type(typ)
			if cmd.Flags().Changed("per-page") {
				req.PerPage = &perPage
			}
			if cmd.Flags().Changed("before") {
				req.BeforeSequence = &before
			}
			if cmd.Flags().Changed("offset") {
				req.Offset = &offset
			}
			if facets != "" {
				if err := json.Unmarshal([]byte(facets), &req.Facets); err != nil {
					return errors.Errorf("--filters: %w", err)
				}
			}
			return runSearch(cmd, req, output)
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "entry type (required)")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "page size")
	cmd.Flags().Int64Var(&before, "before", 0, "return entries older than this sequence")
	cmd.Flags().StringVar(&req.SortBy, "sort-by", "", "sequence, created_at, content.duration or content.time")
	cmd.Flags().StringVar(&req.SortDirection, "sort-direction", "", "asc or desc")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip when sorting by a column other than sequence")
	cmd.Flags().StringVar(&req.DateFrom, "from", "", "earliest created_at date")
	cmd.Flags().StringVar(&req.DateTo, "to", "", "latest created_at date (inclusive)")
	cmd.Flags().StringVar(&req.Content, "content", "", "substring of the raw content")
	cmd.Flags().StringVar(&facets, "filters", "", "type-specific facets as a JSON object")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func runSearch(cmd *cobra.Command, req querier.SearchRequest, output string) error {
	cfg, s, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	page, err := newQuerier(s, cfg).Search(cmd.Context(), req)
	if err != nil {
		return errors.Errorf("search: %w", err)
	}

	out := cmd.OutOrStdout()
	switch output {
	case "json":
		return writeJSON(out, page)
	case "table":
		_, err := fmt.Fprintln(out, renderPage(page))
		if err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown output format %q", output)
	}

	switch {
	case page.NextCursor != nil:
		fmt.Fprintf(os.Stderr, "\n%d entries, next page: --before %d\n", len(page.Entries), *page.NextCursor)
	case page.TotalOffset != nil && page.HasMore:
		fmt.Fprintf(os.Stderr, "\n%d entries, next page: --offset %d\n", len(page.Entries), *page.TotalOffset)
	default:
		fmt.Fprintf(os.Stderr, "\n%d entries\n", len(page.Entries))
	}
	return nil
}

func renderPage(page *querier.Page) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SEQ", "UUID", "CREATED", "SUMMARY")
	for _, e := range page.Entries {
		t.Row(fmt.Sprint(e.Sequence), e.UUID, e.CreatedAt, summaryLine(e.Content))
	}
	return t.String()
}

// summaryLine renders the non-null summary fields as key=value pairs.
func summaryLine(s catalog.Summary) string {
	var parts []string
	for _, f := range s {
		if len(f.Value) == 0 || string(f.Value) == "null" {
			continue
		}
		v := string(f.Value)
		var str string
		if json.Unmarshal(f.Value, &str) == nil {
			v = str
		}
		parts = append(parts, f.Key+"="+v)
	}
	line := strings.Join(parts, " ")
	if r := []rune(line); len(r) > summaryWidth {
		line = string(r[:summaryWidth-1]) + "…"
	}
	return line
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
