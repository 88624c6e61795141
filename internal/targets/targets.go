// Package targets reads the list of URLs a batch checks.
package targets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNoTargets = errors.New("no targets")

// Defaults is checked when no targets are supplied.
var Defaults = []string{
	"https://www.google.com",
	"https://www.facebook.com",
	"https://www.twitter.com",
	"https://www.reddit.com",
	"https://www.youtube.com",
}

// IsValidURL reports whether raw is an absolute http or https URL with a host.
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != "" && u.Hostname() != ""
}

// Read parses one URL per line. Blank lines and lines starting with '#' are
// skipped; duplicates are kept, each is its own target.
func Read(r io.Reader) ([]string, error) {
	var (
		out  []string
		bad  []string
		line int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		if !IsValidURL(s) {
			bad = append(bad, fmt.Sprintf("line %d: %q", line, s))
			continue
		}
		out = append(out, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("invalid target url(s): %s", strings.Join(bad, ", "))
	}
	if len(out) == 0 {
		return nil, ErrNoTargets
	}
	return out, nil
}

type yamlFile struct {
	Targets []string `yaml:"targets"`
}

// ReadYAML accepts either a plain sequence of URLs or a mapping with a
// "targets" key.
func ReadYAML(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse targets yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, ErrNoTargets
	}

	var list []string
	switch root := doc.Content[0]; root.Kind {
	case yaml.SequenceNode:
		err = root.Decode(&list)
	case yaml.MappingNode:
		var f yamlFile
		err = root.Decode(&f)
		list = f.Targets
	default:
		err = fmt.Errorf("expected a list or a mapping, got %s", root.Tag)
	}
	if err != nil {
		return nil, fmt.Errorf("parse targets yaml: %w", err)
	}

	var (
		out []string
		bad []string
	)
	for i, s := range list {
		s = strings.TrimSpace(s)
		if !IsValidURL(s) {
			bad = append(bad, fmt.Sprintf("entry %d: %q", i+1, s))
			continue
		}
		out = append(out, s)
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("invalid target url(s): %s", strings.Join(bad, ", "))
	}
	if len(out) == 0 {
		return nil, ErrNoTargets
	}
	return out, nil
}

// ReadFile picks the format from the file extension.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadYAML(f)
	default:
		return Read(f)
	}
}
