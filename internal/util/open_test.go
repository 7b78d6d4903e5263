package util

import (
	"path/filepath"
	"testing"
)

func TestOpenCommand_PerPlatform(t *testing.T) {
	t.Parallel()

	target := "/tmp/filled report.xlsx"
	cases := map[string][]string{
		"windows": {"rundll32", "url.dll,FileProtocolHandler", target},
		"darwin":  {"open", target},
		"linux":   {"xdg-open", target},
	}
	for goos, want := range cases {
		cmd := openCommand(goos, target)
		if filepath.Base(cmd.Args[0]) != want[0] {
			t.Fatalf("%s: program=%q want %q", goos, cmd.Args[0], want[0])
		}
		if len(cmd.Args) != len(want) {
			t.Fatalf("%s: args=%v want %v", goos, cmd.Args, want)
		}
		for i := 1; i < len(want); i++ {
			if cmd.Args[i] != want[i] {
				t.Fatalf("%s: args=%v want %v", goos, cmd.Args, want)
			}
		}
	}
}
