package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/MatiasPrietoHernan/Retriever/internal/usecase/ingest"
)

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("TOKKO_API_KEY", "")
	if _, err := resolveAPIKey(""); err == nil {
		t.Error("expected error without flag or env")
	}

	t.Setenv("TOKKO_API_KEY", "from-env")
	if got, _ := resolveAPIKey(""); got != "from-env" {
		t.Errorf("env fallback = %q", got)
	}
	if got, _ := resolveAPIKey("from-flag"); got != "from-flag" {
		t.Errorf("flag = %q, flag must win over env", got)
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	want := map[string]bool{"run": false, "search": false, "count": false, "preview": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, ingest.Report{
		Tenant:  "acme",
		Status:  ingest.StatusSuccess,
		Stage:   ingest.StageDone,
		Message: ingest.MsgCompleted,
		Records: 3,
		Count:   2,
		Failed:  []ingest.FailedRecord{{Index: 1, ID: "77", Reason: "missing description"}},
	})

	out := buf.String()
	for _, s := range []string{"company:   acme", "count:     2", "skipped:   record 1 (77): missing description"} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
}
