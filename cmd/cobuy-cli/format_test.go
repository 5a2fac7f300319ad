package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := formatJSON(&buf, map[string]string{"id": "abc-123"}); err != nil {
		t.Fatalf("formatJSON: %v", err)
	}

	var out map[string]string
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if out["id"] != "abc-123" {
		t.Errorf("id: got %q", out["id"])
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Errorf("expected indented JSON but got: %s", buf.String())
	}
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	formatTable(&buf, table{
		headers: []string{"PRODUCT", "SCORE"},
		rows: [][]string{
			{"p1", "0.9100"},
			{"a-much-longer-id", "0.5000"},
		},
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	if strings.Trim(lines[1], "- ") != "" {
		t.Errorf("separator contains unexpected chars: %q", lines[1])
	}
	// Second column starts at the same offset on every line.
	col := strings.Index(lines[0], "SCORE")
	if strings.Index(lines[2], "0.9100") != col || strings.Index(lines[3], "0.5000") != col {
		t.Errorf("columns misaligned:\n%s", buf.String())
	}
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	formatTable(&buf, table{headers: []string{"ID", "NAME"}})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and separator, got %d lines:\n%s", len(lines), buf.String())
	}
}

func TestRender(t *testing.T) {
	tbl := &table{headers: []string{"ID"}, rows: [][]string{{"x"}}}

	tests := []struct {
		name   string
		format string
		tbl    *table
		check  func(t *testing.T, out string)
	}{
		{
			name:   "json",
			format: "json",
			tbl:    tbl,
			check: func(t *testing.T, out string) {
				if !json.Valid([]byte(out)) {
					t.Errorf("not JSON: %s", out)
				}
			},
		},
		{
			name:   "quiet",
			format: "quiet",
			tbl:    tbl,
			check: func(t *testing.T, out string) {
				if out != "quiet-id\n" {
					t.Errorf("got %q", out)
				}
			},
		},
		{
			name:   "table",
			format: "table",
			tbl:    tbl,
			check: func(t *testing.T, out string) {
				if !strings.HasPrefix(out, "ID") {
					t.Errorf("got %q", out)
				}
			},
		},
		{
			name:   "table falls back to json",
			format: "table",
			check: func(t *testing.T, out string) {
				if !json.Valid([]byte(out)) {
					t.Errorf("not JSON: %s", out)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			flagFmt = tt.format

			var buf bytes.Buffer
			if err := render(&buf, map[string]string{"id": "x"}, "quiet-id", tt.tbl); err != nil {
				t.Fatalf("render: %v", err)
			}
			tt.check(t, buf.String())
		})
	}
}

func TestVersionString(t *testing.T) {
	origCommit, origDate := commit, buildDate
	defer func() { commit, buildDate = origCommit, origDate }()

	commit, buildDate = "", ""
	if s := versionString(); !strings.HasSuffix(s, "-dev") {
		t.Errorf("dev build: got %q", s)
	}

	commit, buildDate = "abc123", "2026-01-01"
	if s := versionString(); !strings.Contains(s, "commit: abc123") {
		t.Errorf("release build: got %q", s)
	}
}
