// Package routing directs finished spec files to the project they belong
// to: submodule discovery, content-based project detection, inbox/archive
// placement, and best-effort tracking-issue creation.
package routing

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	submoduleBlockRe = regexp.MustCompile(`(?m)^\[submodule\s+"([^"]+)"\]\s*\n((?:[ \t]+\S.*\n?)*)`)
	submodulePathRe  = regexp.MustCompile(`path\s*=\s*(.+)`)
	submoduleURLRe   = regexp.MustCompile(`url\s*=\s*(.+)`)
)

// Submodule describes one initialized git submodule of the root repository.
type Submodule struct {
	Name         string
	Path         string
	AbsolutePath string
	URL          string
	// HasBeads marks a .beads/ directory, the tracking-issue marker.
	HasBeads bool
	// HasInbox marks a dev_notes/inbox/ directory for item routing.
	HasInbox bool
}

// SubmoduleDiscoverer parses .gitmodules once and caches the result.
type SubmoduleDiscoverer struct {
	rootPath string
	logger   *slog.Logger
	cache    map[string]Submodule
}

func NewSubmoduleDiscoverer(rootPath string, logger *slog.Logger) *SubmoduleDiscoverer {
	if logger == nil {
		logger = slog.Default()
	}
	d := &SubmoduleDiscoverer{
		rootPath: rootPath,
		logger:   logger.With("component", "submodules"),
		cache:    make(map[string]Submodule),
	}
	d.discover()
	return d
}

func (d *SubmoduleDiscoverer) discover() {
	gitmodulesPath := filepath.Join(d.rootPath, ".gitmodules")

	content, err := os.ReadFile(gitmodulesPath)
	if err != nil {
		d.logger.Warn("No .gitmodules file found", "path", gitmodulesPath)
		return
	}

	// Strip comment lines before block matching.
	var kept []string
	for _, line := range strings.SplitAfter(string(content), "\n") {
		if !strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") {
			kept = append(kept, line)
		}
	}
	clean := strings.Join(kept, "")

	for _, match := range submoduleBlockRe.FindAllStringSubmatch(clean, -1) {
		name := match[1]
		body := match[2]

		pathMatch := submodulePathRe.FindStringSubmatch(body)
		if pathMatch == nil {
			continue
		}
		relPath := strings.TrimSpace(pathMatch[1])
		absPath := filepath.Join(d.rootPath, relPath)

		url := ""
		if urlMatch := submoduleURLRe.FindStringSubmatch(body); urlMatch != nil {
			url = strings.TrimSpace(urlMatch[1])
		}

		info, err := os.Stat(absPath)
		if err != nil || !info.IsDir() {
			d.logger.Debug("Submodule not initialized", "name", name, "path", relPath)
			continue
		}

		sub := Submodule{
			Name:         name,
			Path:         relPath,
			AbsolutePath: absPath,
			URL:          url,
			HasBeads:     isDir(filepath.Join(absPath, ".beads")),
			HasInbox:     isDir(filepath.Join(absPath, "dev_notes", "inbox")),
		}
		d.cache[name] = sub
		d.logger.Debug("Discovered submodule", "name", name, "beads", sub.HasBeads, "inbox", sub.HasInbox)
	}

	d.logger.Info("Discovered submodules", "count", len(d.cache))
}

// Submodules returns discovered submodules, optionally only those with
// tracking support.
func (d *SubmoduleDiscoverer) Submodules(withBeads bool) []Submodule {
	var out []Submodule
	for _, s := range d.cache {
		if withBeads && !s.HasBeads {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Find looks up a submodule by project name.
func (d *SubmoduleDiscoverer) Find(projectName string) (Submodule, bool) {
	s, ok := d.cache[projectName]
	return s, ok
}

// ProjectNames returns sorted project names, optionally only those with
// tracking support.
func (d *SubmoduleDiscoverer) ProjectNames(withBeads bool) []string {
	var names []string
	for name, s := range d.cache {
		if withBeads && !s.HasBeads {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
