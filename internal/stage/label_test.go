package stage_test

import (
	"testing"

	"strata/internal/stage"
)

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"provision":   "Provision",
		"style_check": "Style Check",
		"  verify ":   "Verify",
		"":            "",
	}
	for input, want := range cases {
		if got := stage.Label(input); got != want {
			t.Errorf("Label(%q) = %q, want %q", input, got, want)
		}
	}
}
