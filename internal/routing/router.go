package routing

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	projectTagRe     = regexp.MustCompile(`[Pp]roject:\s*([a-z0-9\-]+)`)
	projectMentionRe = regexp.MustCompile(`@([a-z0-9\-]+)`)
)

// detectionWindow bounds how much of a spec file is inspected for a project
// reference.
const detectionWindow = 500

// ProjectRouter maps spec files to target projects. The registry is built
// once at construction: submodules with tracking support, plus a scan of the
// modules/ directory for projects that are not submodules.
type ProjectRouter struct {
	rootPath string
	logger   *slog.Logger
	registry map[string]string
}

func NewProjectRouter(rootPath string, logger *slog.Logger) *ProjectRouter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ProjectRouter{
		rootPath: rootPath,
		logger:   logger.With("component", "router"),
		registry: make(map[string]string),
	}
	r.discoverProjects()
	return r
}

func (r *ProjectRouter) discoverProjects() {
	discoverer := NewSubmoduleDiscoverer(r.rootPath, r.logger)
	for _, sub := range discoverer.Submodules(true) {
		r.registry[sub.Name] = sub.AbsolutePath
	}

	// Projects that live under modules/ without being submodules still
	// count when they carry a .beads marker. Submodule entries win.
	modulesDir := filepath.Join(r.rootPath, "modules")
	entries, err := os.ReadDir(modulesDir)
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := entry.Name()
			path := filepath.Join(modulesDir, name)
			if _, taken := r.registry[name]; taken {
				continue
			}
			if isDir(filepath.Join(path, ".beads")) {
				r.registry[name] = path
				r.logger.Debug("Discovered project from modules dir", "name", name)
			}
		}
	}

	r.logger.Info("Discovered projects", "count", len(r.registry))
}

// DetectProject inspects the head of a spec file for a project reference:
// a "Project: name" tag first, then an "@name" mention, then any registry
// name appearing in the filename. Empty means no match, which routes to the
// home project.
func (r *ProjectRouter) DetectProject(filePath string) string {
	f, err := os.Open(filePath)
	if err != nil {
		r.logger.Warn("File not found", "path", filePath)
		return ""
	}
	defer f.Close()

	head := make([]byte, detectionWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		r.logger.Error("Failed to read file", "path", filePath, "error", err)
		return ""
	}
	content := string(head[:n])

	if m := projectTagRe.FindStringSubmatch(content); m != nil {
		name := m[1]
		if _, ok := r.registry[name]; ok {
			r.logger.Info("Detected project from tag", "project", name)
			return name
		}
		r.logger.Warn("Project not found", "project", name)
	}

	if m := projectMentionRe.FindStringSubmatch(content); m != nil {
		name := m[1]
		if _, ok := r.registry[name]; ok {
			r.logger.Info("Detected project from mention", "project", name)
			return name
		}
	}

	base := filepath.Base(filePath)
	for _, name := range r.sortedNames() {
		if strings.Contains(base, name) {
			r.logger.Info("Detected project from filename", "project", name)
			return name
		}
	}

	r.logger.Info("No project detected", "file", base)
	return ""
}

// ProjectPath returns the root of the named project, falling back to the
// home repository for unknown or empty names.
func (r *ProjectRouter) ProjectPath(projectName string) string {
	if path, ok := r.registry[projectName]; ok {
		return path
	}
	return r.rootPath
}

// InboxPath returns the project's dev_notes/inbox directory, creating it on
// demand.
func (r *ProjectRouter) InboxPath(projectName string) (string, error) {
	path := filepath.Join(r.ProjectPath(projectName), "dev_notes", "inbox")
	return path, os.MkdirAll(path, 0755)
}

// ArchivePath returns the project's dev_notes/inbox-archive directory,
// creating it on demand.
func (r *ProjectRouter) ArchivePath(projectName string) (string, error) {
	path := filepath.Join(r.ProjectPath(projectName), "dev_notes", "inbox-archive")
	return path, os.MkdirAll(path, 0755)
}

// Projects returns sorted registry names.
func (r *ProjectRouter) Projects() []string {
	return r.sortedNames()
}

func (r *ProjectRouter) sortedNames() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
