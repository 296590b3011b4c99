package main

import (
	"strings"
	"testing"
)

func TestRenderTableEmptyHeadersReturnsEmptyString(t *testing.T) {
	if got := renderTable(nil, nil, nil); got != "" {
		t.Fatalf("expected empty string for no columns, got %q", got)
	}
}

func TestRenderTableIncludesHeadersAndRowValues(t *testing.T) {
	out := renderTable(
		[]string{"Queue", "Claimable"},
		[][]string{{"default", "3"}, {"archive", "0"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	for _, want := range []string{"Queue", "Claimable", "default", "archive", "3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected rendered table to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only-a"}}, nil)
	if !strings.Contains(out, "only-a") {
		t.Fatalf("expected short row to still render, got:\n%s", out)
	}
}
