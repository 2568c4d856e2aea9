package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/importshim/pkg/sourcemap"
)

var (
	resolveFormat string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <file> <line> <column>",
	Short: "Map a generated position back to its original source",
	Long: `Resolve a position in a generated chunk (1-based line, 0-based column,
as browsers report them in stack traces) to the original source position
using the chunk's source map. The map named by the chunk's
sourceMappingURL comment is used when present, otherwise <file>.map.`,
	Args: cobra.ExactArgs(3),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "human", "Output format: human, json")
}

// resolvedPosition is an original source position.
type resolvedPosition struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Name   string `json:"name,omitempty"`
	Map    string `json:"map"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	path := args[0]
	line, err := strconv.Atoi(args[1])
	if err != nil || line < 1 {
		return fmt.Errorf("invalid line %q: must be a positive integer", args[1])
	}
	column, err := strconv.Atoi(args[2])
	if err != nil || column < 0 {
		return fmt.Errorf("invalid column %q: must be a non-negative integer", args[2])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, mapName, err := findMap(path, cfg.MapSuffix)
	if err != nil {
		return err
	}

	m, err := sourcemap.Parse(data)
	if err != nil {
		return fmt.Errorf("parsing source map %s: %w", mapName, err)
	}

	orig, ok, err := m.Source(line-1, column)
	if err != nil {
		return fmt.Errorf("decoding source map %s: %w", mapName, err)
	}
	if !ok {
		return fmt.Errorf("no mapping for %s:%d:%d", path, line, column)
	}
	pos := resolvedPosition{Source: orig.Source, Line: orig.Line + 1, Column: orig.Column, Name: orig.Name, Map: mapName}

	switch resolveFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(pos)
	case "human":
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%d:%d\n", pos.Source, pos.Line, pos.Column)
		if pos.Name != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Name: %s\n", pos.Name)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", resolveFormat)
	}
}

// findMap loads the source map for the chunk at path. It returns the map
// and a name for it: its file path, or "inline".
func findMap(path, suffix string) ([]byte, string, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}

	if ref, ok := sourcemap.CommentURL(string(code)); ok {
		if sourcemap.IsDataURL(ref) {
			data, err := sourcemap.DecodeDataURL(ref)
			if err != nil {
				return nil, "", fmt.Errorf("reading inline map in %s: %w", path, err)
			}
			return data, "inline", nil
		}
		if !strings.Contains(ref, "://") {
			mapPath := filepath.Join(filepath.Dir(path), filepath.FromSlash(ref))
			if data, err := os.ReadFile(mapPath); err == nil {
				return data, mapPath, nil
			}
		}
	}

	mapPath := path + suffix
	data, err := os.ReadFile(mapPath)
	if err != nil {
		return nil, "", fmt.Errorf("no source map found for %s", path)
	}
	return data, mapPath, nil
}
