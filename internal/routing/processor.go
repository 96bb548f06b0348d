package routing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jjurach/pigeon/internal/source"
)

// Processor routes a finished spec: detect the target project, copy the spec
// into its inbox, archive the original in the home repository, and file a
// tracking issue. Unlike pipeline processors it places the file rather than
// transforming it.
type Processor struct {
	router *ProjectRouter
	issues *IssueCreator
	logger *slog.Logger
}

func NewProcessor(rootPath, issueCommand string, issueTimeout time.Duration, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		router: NewProjectRouter(rootPath, logger),
		issues: NewIssueCreator(issueCommand, issueTimeout, logger),
		logger: logger.With("component", "routing"),
	}
}

// Process routes specFile and returns its new path in the target inbox.
// origin names where the item came from (gdrive, slack, telegram) and only
// feeds the issue description fallback.
func (p *Processor) Process(ctx context.Context, specFile, origin string) (string, error) {
	if _, err := os.Stat(specFile); err != nil {
		return "", fmt.Errorf("spec file not found: %s", specFile)
	}

	projectName := p.router.DetectProject(specFile)
	target := projectName
	if target == "" {
		target = "home"
	}
	p.logger.Info("Routing spec", "file", filepath.Base(specFile), "project", target)

	targetInbox, err := p.router.InboxPath(projectName)
	if err != nil {
		return "", fmt.Errorf("create target inbox: %w", err)
	}

	targetPath, err := source.UniquePath(filepath.Join(targetInbox, filepath.Base(specFile)))
	if err != nil {
		return "", err
	}
	if err := copyFile(specFile, targetPath); err != nil {
		return "", fmt.Errorf("copy spec to inbox: %w", err)
	}
	p.logger.Info("Copied spec to inbox", "path", targetPath)

	// The original is archived in the home repository, whatever the
	// routing target was.
	homeArchive, err := p.router.ArchivePath("")
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	archivedPath, err := source.UniquePath(filepath.Join(homeArchive, filepath.Base(specFile)))
	if err != nil {
		return "", err
	}
	if err := os.Rename(specFile, archivedPath); err != nil {
		return "", fmt.Errorf("archive original: %w", err)
	}
	p.logger.Info("Archived original", "path", archivedPath)

	projectPath := p.router.ProjectPath(projectName)
	title := SpecTitle(targetPath)
	description := SpecDescription(targetPath, origin)
	if id := p.issues.Create(ctx, projectPath, targetPath, title, description); id != "" {
		p.logger.Info("Created tracking issue", "id", id)
	}

	return targetPath, nil
}

// Projects exposes the routing registry for status reporting.
func (p *Processor) Projects() []string {
	return p.router.Projects()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
