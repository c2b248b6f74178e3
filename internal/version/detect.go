// Package version detects the external SQL client the pipeline depends on.
package version

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// Info describes an installed sqlcmd client.
type Info struct {
	Path    string
	Version string
	// Flavor is "go" for the go-sqlcmd rewrite and "odbc" for the classic tool.
	Flavor string
}

const detectTimeout = 5 * time.Second

var versionRegex = regexp.MustCompile(`(?i)(?:version\s+|v)(\d+\.\d+(?:\.\d+)*)`)

// DetectSqlcmd resolves name on PATH and asks it for its version. The go
// client answers --version; the ODBC client only prints it in its -? banner.
func DetectSqlcmd(ctx context.Context, name string) (Info, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return Info{}, err
	}
	if out, err := runCommand(ctx, path, "--version"); err == nil {
		if v, ok := parseVersion(out); ok {
			return Info{Path: path, Version: v, Flavor: "go"}, nil
		}
	}
	out, err := runCommand(ctx, path, "-?")
	if v, ok := parseVersion(out); ok {
		return Info{Path: path, Version: v, Flavor: "odbc"}, nil
	}
	if err != nil {
		return Info{Path: path}, err
	}
	return Info{Path: path}, fmt.Errorf("unable to parse sqlcmd version from %q", out)
}

func parseVersion(out string) (string, bool) {
	match := versionRegex.FindStringSubmatch(out)
	if len(match) < 2 {
		return "", false
	}
	return match[1], true
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return strings.TrimSpace(buf.String()), err
}

// Missing reports whether executing the command returns a not-found error.
func Missing(cmdErr error) bool {
	return errors.Is(cmdErr, exec.ErrNotFound)
}
