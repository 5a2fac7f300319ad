package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// table is the tabular rendering of a command result.
type table struct {
	headers []string
	rows    [][]string
}

func formatJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func formatTable(w io.Writer, t table) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], len(cell))
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", w, cell)
		}
		fmt.Fprintln(w, strings.Join(parts, "  "))
	}

	printRow(t.headers)
	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	printRow(seps)
	for _, row := range t.rows {
		printRow(row)
	}
}

// render writes v in the selected --format. quiet is the single value
// printed in quiet mode; tbl may be nil, in which case table mode falls
// back to JSON.
func render(w io.Writer, v any, quiet string, tbl *table) error {
	switch flagFmt {
	case "quiet":
		fmt.Fprintln(w, quiet)
		return nil
	case "table":
		if tbl != nil {
			formatTable(w, *tbl)
			return nil
		}
	}
	return formatJSON(w, v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
