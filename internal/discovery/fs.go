package discovery

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoScripts indicates that no SQL scripts matched during discovery.
var ErrNoScripts = errors.New("no sql scripts discovered")

// Script is a SQL file scheduled for execution.
type Script struct {
	Path        string
	Name        string
	Description string
}

// Known lists the crew database scripts in execution order.
var Known = []Script{
	{Name: "00_reset_crew_database.sql", Description: "Reset database"},
	{Name: "01_create_crew_database.sql", Description: "Create database schema"},
	{Name: "02_insert_crew_data.sql", Description: "Insert test data"},
	{Name: "03_crew_logic.sql", Description: "Create business logic"},
	{Name: "04_test_crew_logic.sql", Description: "Run tests"},
	{Name: "05_reports.sql", Description: "Generate SQL reports"},
}

// Defaults returns the known scripts rooted at dir. Files are not required to exist;
// a missing file surfaces as a failure of its step.
func Defaults(dir string) []Script {
	out := make([]Script, 0, len(Known))
	for _, s := range Known {
		s.Path = filepath.Join(dir, s.Name)
		out = append(out, s)
	}
	return out
}

// Scripts returns the files in dir matching pattern, sorted lexicographically.
// Descriptions come from the known list, then a leading "--" comment line,
// then the file name.
func Scripts(dir, pattern string) ([]Script, error) {
	glob := filepath.Join(dir, pattern)
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", glob, err)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", m, err)
		}
		if info.IsDir() {
			continue
		}
		paths = append(paths, m)
	}
	if len(paths) == 0 {
		return nil, ErrNoScripts
	}
	sort.Strings(paths)

	out := make([]Script, 0, len(paths))
	for _, p := range paths {
		name := filepath.Base(p)
		desc, err := describe(p, name)
		if err != nil {
			return nil, err
		}
		out = append(out, Script{Path: p, Name: name, Description: desc})
	}
	return out, nil
}

func describe(path, name string) (string, error) {
	for _, s := range Known {
		if s.Name == name {
			return s.Description, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "--") {
			if text := strings.TrimSpace(strings.TrimPrefix(line, "--")); text != "" {
				return text, nil
			}
			continue
		}
		break
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read %q: %w", path, err)
	}
	return strings.TrimSuffix(name, filepath.Ext(name)), nil
}
