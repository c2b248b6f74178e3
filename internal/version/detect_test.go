package version

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestParseVersion(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"sqlcmd: v1.8.2", "1.8.2", true},
		{"Microsoft (R) SQL Server Command Line Tool\nVersion 17.10.0001.1 Linux", "17.10.0001.1", true},
		{"usage: sqlcmd [-U login id]", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := parseVersion(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("parseVersion(%q) = %q,%v want %q,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestDetectSqlcmdMissing(t *testing.T) {
	_, err := DetectSqlcmd(context.Background(), "sqlcmd-definitely-not-installed")
	if !Missing(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDetectSqlcmdFlavors(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs need a POSIX shell")
	}
	cases := []struct {
		name   string
		script string
		want   Info
	}{
		{
			name:   "go client",
			script: "#!/bin/sh\necho 'sqlcmd: v1.8.2'\n",
			want:   Info{Version: "1.8.2", Flavor: "go"},
		},
		{
			name:   "odbc client",
			script: "#!/bin/sh\nif [ \"$1\" = \"--version\" ]; then echo 'Unknown option' >&2; exit 1; fi\necho 'Microsoft (R) SQL Server Command Line Tool'\necho 'Version 17.10.0001.1 Linux'\n",
			want:   Info{Version: "17.10.0001.1", Flavor: "odbc"},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sqlcmd")
			if err := os.WriteFile(path, []byte(c.script), 0o755); err != nil {
				t.Fatalf("write stub: %v", err)
			}
			got, err := DetectSqlcmd(context.Background(), path)
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			if got.Version != c.want.Version || got.Flavor != c.want.Flavor || got.Path != path {
				t.Fatalf("DetectSqlcmd = %+v, want %+v", got, c.want)
			}
		})
	}
}
