package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	gierrors "github.com/Aman-CERP/graphindex/internal/errors"
	"github.com/Aman-CERP/graphindex/internal/output"
	"github.com/Aman-CERP/graphindex/internal/source"
	"github.com/Aman-CERP/graphindex/internal/store"
	"github.com/Aman-CERP/graphindex/pkg/graph"
	"github.com/Aman-CERP/graphindex/pkg/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	kind    string
	limit   int
	resolve bool
	format  string // "text", "json"
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index for one entity kind",
		Long: `Run a full-text query against the node or relationship index.

With --resolve, each match is loaded back from Neo4j by its key property.
Matches whose entity no longer exists are shown unresolved.`,
		Example: `  graphindex search alice
  graphindex search "since:2020" --kind relationship
  graphindex search acme --resolve --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "node", "Entity kind: node, relationship")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.resolve, "resolve", false, "Load matched entities from Neo4j")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

// searchResult is the JSON form of a match.
type searchResult struct {
	UUID   string         `json:"uuid"`
	Score  *float64       `json:"score"`
	Labels []string       `json:"labels,omitempty"`
	Type   string         `json:"type,omitempty"`
	Props  map[string]any `json:"properties,omitempty"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, root *rootOptions, query string, opts searchOptions) error {
	if strings.TrimSpace(query) == "" {
		return gierrors.New(gierrors.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	kind, err := graph.ParseKind(opts.kind)
	if err != nil {
		return gierrors.New(gierrors.ErrCodeUnknownKind, err.Error(), err).
			WithSuggestion("use --kind node or --kind relationship")
	}
	if opts.format != "text" && opts.format != "json" {
		return gierrors.ValidationError(fmt.Sprintf("invalid format %q", opts.format), nil).
			WithSuggestion("use --format text or --format json")
	}

	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer a.Close()

	backend, release, err := a.openBackend()
	if err != nil {
		return err
	}
	defer release()

	searcher, ok := backend.(store.Searcher)
	if !ok {
		return gierrors.ConfigError(fmt.Sprintf("backend %s does not support search", a.backendKind()), nil)
	}

	mapper, err := a.newMapper()
	if err != nil {
		return err
	}
	indexName, err := mapper.IndexFor(kind)
	if err != nil {
		return gierrors.InternalError("failed to resolve index name", err)
	}

	a.logger.Info("search_started", slog.String("index", indexName), slog.String("query", query), slog.Int("limit", opts.limit))

	hits, err := searcher.Search(ctx, indexName, query, opts.limit)
	if err != nil {
		return gierrors.New(gierrors.ErrCodeSearchFailed, fmt.Sprintf("search on %s failed", indexName), err)
	}
	matches := search.FromHits[graph.Entity](hits)

	if opts.resolve && len(matches) > 0 {
		keyProperty, err := mapper.KeyProperty()
		if err != nil {
			return err
		}
		src, err := openSource(ctx, a.cfg.Graph)
		if err != nil {
			return err
		}
		cached := source.NewCachedSource(src, a.cfg.Graph.LookupCacheSize)
		defer func() { _ = cached.Close() }()

		resolved, err := search.Resolve(ctx, matches, func(ctx context.Context, uuid string) (graph.Entity, error) {
			return cached.Lookup(ctx, kind, keyProperty, uuid)
		}, a.cfg.Sync.Parallelism)
		if err != nil {
			return gierrors.GraphError("failed to resolve matches", err)
		}
		a.logger.Debug("matches_resolved", slog.Int("resolved", resolved), slog.Int("total", len(matches)))
	}

	if opts.format == "json" {
		return printMatchesJSON(cmd, matches)
	}
	printMatches(output.New(cmd.OutOrStdout()), matches, opts.resolve)
	return nil
}

func toResult(m *search.Match[graph.Entity]) searchResult {
	r := searchResult{UUID: m.UUID(), Score: m.Score()}
	item, ok := m.Item()
	if !ok {
		return r
	}
	r.Props = item.Properties()
	switch e := item.(type) {
	case *graph.Node:
		r.Labels = e.Labels
	case *graph.Relationship:
		r.Type = e.Type
	}
	return r
}

func printMatchesJSON(cmd *cobra.Command, matches []*search.Match[graph.Entity]) error {
	results := make([]searchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, toResult(m))
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func printMatches(out *output.Writer, matches []*search.Match[graph.Entity], resolved bool) {
	if len(matches) == 0 {
		out.Status("", "No matches")
		return
	}

	headers := []string{"KEY", "SCORE"}
	if resolved {
		headers = append(headers, "ENTITY")
	}

	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		row := []string{m.UUID(), formatScore(m.Score())}
		if resolved {
			row = append(row, describe(toResult(m)))
		}
		rows = append(rows, row)
	}
	out.Table(headers, rows)
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return strconv.FormatFloat(*score, 'f', 4, 64)
}

// describe renders a resolved entity as ":Label1:Label2 {k: v, ...}".
func describe(r searchResult) string {
	if r.Props == nil && r.Labels == nil && r.Type == "" {
		return "(not found)"
	}

	var sb strings.Builder
	for _, l := range r.Labels {
		sb.WriteString(":" + l)
	}
	if r.Type != "" {
		sb.WriteString(":" + r.Type)
	}

	keys := make([]string, 0, len(r.Props))
	for k := range r.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, r.Props[k]))
	}
	if sb.Len() > 0 {
		sb.WriteString(" ")
	}
	sb.WriteString("{" + strings.Join(parts, ", ") + "}")
	return sb.String()
}
