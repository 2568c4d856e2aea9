package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/importshim/pkg/store"
	"github.com/praetorian-inc/importshim/pkg/types"
)

var (
	reportStore  string
	reportFormat string
	reportColor  string
	reportLimit  int
)

// styles holds color formatters for report output
type styles struct {
	chunkHeading *color.Color
	id           *color.Color
	heading      *color.Color
	path         *color.Color
	original     *color.Color
	replacement  *color.Color
}

// newStyles creates color formatters for report output
// enabled=false respects --color=never and the NO_COLOR env var
func newStyles(enabled bool) *styles {
	s := &styles{
		chunkHeading: color.New(color.Bold, color.FgHiWhite),
		id:           color.New(color.FgHiGreen),
		heading:      color.New(color.Bold),
		path:         color.New(color.FgHiBlue),
		original:     color.New(color.FgRed),
		replacement:  color.New(color.FgYellow),
	}

	if !enabled {
		s.chunkHeading.DisableColor()
		s.id.DisableColor()
		s.heading.DisableColor()
		s.path.DisableColor()
		s.original.DisableColor()
		s.replacement.DisableColor()
	}

	return s
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report the rewrites recorded in a result store",
	Long:  "Read chunks and rewrites from a result store and output a summary report",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportStore, "store", "importshim.db", "Path to result store")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 5, "Rewrites shown per chunk (0 = all)")
}

// chunkReport is a rewritten chunk with its rewrites.
type chunkReport struct {
	*store.ChunkRecord
	Rewrites []*types.Rewrite `json:"rewrites"`
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportStore == store.MemoryPath {
		return fmt.Errorf("cannot report from in-memory store")
	}
	if _, err := os.Stat(reportStore); err != nil {
		return fmt.Errorf("store not found: %s", reportStore)
	}

	s, err := store.New(store.Config{Path: reportStore})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	chunks, err := s.GetChunks()
	if err != nil {
		return fmt.Errorf("retrieving chunks: %w", err)
	}
	rewrites, err := s.GetAllRewrites()
	if err != nil {
		return fmt.Errorf("retrieving rewrites: %w", err)
	}

	reports, unchanged := groupRewrites(chunks, rewrites)

	switch reportFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(reports)
	case "human":
		return outputReportHuman(cmd, reports, unchanged)
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

// groupRewrites attaches rewrites to their chunks, keeping store order.
// Chunks without rewrites are only counted.
func groupRewrites(chunks []*store.ChunkRecord, rewrites []*types.Rewrite) ([]*chunkReport, int) {
	byChunk := make(map[types.ChunkID][]*types.Rewrite)
	for _, r := range rewrites {
		byChunk[r.ChunkID] = append(byChunk[r.ChunkID], r)
	}

	reports := []*chunkReport{}
	unchanged := 0
	for _, c := range chunks {
		rs := byChunk[c.ID]
		if len(rs) == 0 {
			unchanged++
			continue
		}
		reports = append(reports, &chunkReport{ChunkRecord: c, Rewrites: rs})
	}
	return reports, unchanged
}

// colorEnabled resolves the --color flag against the terminal and NO_COLOR.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default: // "auto"
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

func outputReportHuman(cmd *cobra.Command, reports []*chunkReport, unchanged int) error {
	out := cmd.OutOrStdout()

	color.NoColor = !colorEnabled(reportColor)
	s := newStyles(!color.NoColor)

	total := 0
	for _, r := range reports {
		total += len(r.Rewrites)
	}

	fmt.Fprintf(out, "%s\n", s.heading.Sprint("=== importshim Report ==="))
	fmt.Fprintf(out, "Store: %s\n", reportStore)
	fmt.Fprintf(out, "Rewritten chunks: %d (%d unchanged)\n", len(reports), unchanged)
	fmt.Fprintf(out, "Total rewrites: %d\n\n", total)

	for i, r := range reports {
		fmt.Fprintf(out, "%s (%s %s)\n",
			s.chunkHeading.Sprintf("Chunk %d/%d", i+1, len(reports)),
			s.heading.Sprint("id"),
			s.id.Sprint(r.ID.Hex()))

		for _, p := range r.Paths {
			fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("File:"), s.path.Sprint(p))
		}

		shown := r.Rewrites
		if reportLimit > 0 && len(shown) > reportLimit {
			fmt.Fprintf(out, "Showing %d/%d rewrites:\n", reportLimit, len(shown))
			shown = shown[:reportLimit]
		}

		for k, rw := range shown {
			src := rw.Location.Source
			fmt.Fprintf(out, "    %s %s %d:%d-%d:%d  %s -> %s\n",
				s.heading.Sprintf("Rewrite %d/%d", k+1, len(r.Rewrites)),
				s.heading.Sprint("at"),
				src.Start.Line, src.Start.Column, src.End.Line, src.End.Column,
				s.original.Sprint(rw.Original),
				s.replacement.Sprint(rw.Replacement))
		}

		fmt.Fprintf(out, "\n")
	}

	return nil
}
