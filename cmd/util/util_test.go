package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ValentinKolb/recstore/lib/records"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line longer than %d characters: %q", Wrap, line)
		}
	}
}

func TestParseFields(t *testing.T) {
	got, err := ParseFields([]string{
		"title=Dune",
		"pages=412",
		"rating=4.5",
		"available=true",
		"tags=[\"scifi\",1]",
		"note=1 2",
		"empty=",
		"eq=a=b",
	})
	if err != nil {
		t.Fatalf("ParseFields failed: %v", err)
	}
	want := records.Record{
		"title":     "Dune",
		"pages":     int64(412),
		"rating":    4.5,
		"available": true,
		"tags":      []interface{}{"scifi", int64(1)},
		"note":      "1 2",
		"empty":     "",
		"eq":        "a=b",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseFields mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFieldsRejectsMissingName(t *testing.T) {
	for _, arg := range []string{"novalue", "=1"} {
		if _, err := ParseFields([]string{arg}); err == nil {
			t.Errorf("expected error for %q", arg)
		}
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	if err := PrintJSON(cmd, records.Record{"id": int64(1)}); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "{\n  \"id\": 1\n}\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
