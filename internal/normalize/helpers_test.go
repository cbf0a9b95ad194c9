package normalize

import (
	"testing"

	"github.com/tidwall/gjson"
)

func parse(t *testing.T, s string) gjson.Result {
	t.Helper()
	if !gjson.Valid(s) {
		t.Fatalf("invalid json: %s", s)
	}
	return gjson.Parse(s)
}
