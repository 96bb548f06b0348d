package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	pigeonErrors "github.com/jjurach/pigeon/internal/errors"

	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// GoogleClient implements Client against the Drive v3 API. Folder path
// segments are resolved to IDs lazily and cached for the process lifetime,
// so repeated polls avoid redundant lookups.
type GoogleClient struct {
	service *driveapi.Service
	logger  *slog.Logger

	mu          sync.Mutex
	folderCache map[string]string
}

// NewGoogleClient builds a Drive client. credentialsFile may be empty, in
// which case application default credentials are used.
func NewGoogleClient(ctx context.Context, credentialsFile string, logger *slog.Logger) (*GoogleClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.ClientOption{option.WithScopes(driveapi.DriveReadonlyScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	service, err := driveapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init drive service: %w", err)
	}

	logger.Info("Google Drive client initialized")
	return &GoogleClient{
		service:     service,
		logger:      logger,
		folderCache: make(map[string]string),
	}, nil
}

func (c *GoogleClient) ListFolder(ctx context.Context, folderPath string) ([]File, error) {
	folderID, err := c.resolveFolderID(ctx, folderPath)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("'%s' in parents and trashed=false", folderID)
	result, err := c.service.Files.List().
		Q(query).
		Spaces("drive").
		Fields("files(id, name, mimeType, modifiedTime, size)").
		PageSize(1000).
		Context(ctx).
		Do()
	if err != nil {
		return nil, pigeonErrors.Wrap(err, "list folder "+folderPath)
	}

	files := make([]File, 0, len(result.Files))
	for _, f := range result.Files {
		files = append(files, File{
			ID:           f.Id,
			Name:         f.Name,
			MimeType:     f.MimeType,
			ModifiedTime: f.ModifiedTime,
			Size:         f.Size,
		})
	}
	return files, nil
}

// resolveFolderID walks the path segments, querying "folder with this name
// under this parent" and caching every resolved prefix.
func (c *GoogleClient) resolveFolderID(ctx context.Context, folderPath string) (string, error) {
	c.mu.Lock()
	if id, ok := c.folderCache[folderPath]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	parentID := "root"
	currentPath := ""
	for _, part := range strings.Split(folderPath, "/") {
		if part == "" {
			continue
		}
		currentPath += "/" + part

		c.mu.Lock()
		cached, ok := c.folderCache[currentPath]
		c.mu.Unlock()
		if ok {
			parentID = cached
			continue
		}

		query := fmt.Sprintf(
			"name='%s' and '%s' in parents and mimeType='%s' and trashed=false",
			strings.ReplaceAll(part, "'", `\'`), parentID, FolderMimeType)
		result, err := c.service.Files.List().
			Q(query).
			Spaces("drive").
			Fields("files(id, name)").
			PageSize(1).
			Context(ctx).
			Do()
		if err != nil {
			return "", pigeonErrors.Wrap(err, "resolve folder "+currentPath)
		}
		if len(result.Files) == 0 {
			return "", pigeonErrors.NotFound("folder " + currentPath)
		}

		parentID = result.Files[0].Id
		c.mu.Lock()
		c.folderCache[currentPath] = parentID
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.folderCache[folderPath] = parentID
	c.mu.Unlock()
	return parentID, nil
}

func (c *GoogleClient) Download(ctx context.Context, fileID, destPath string) error {
	resp, err := c.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return pigeonErrors.Wrap(err, "download file "+fileID)
	}
	defer resp.Body.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(destPath)
		return pigeonErrors.Wrap(err, "write "+destPath)
	}

	c.logger.Info("Downloaded drive file", "file_id", fileID, "dest", destPath)
	return nil
}

func (c *GoogleClient) Ping(ctx context.Context) error {
	_, err := c.service.Files.Get("root").Fields("id").Context(ctx).Do()
	if err != nil {
		return pigeonErrors.Transient("drive unavailable: " + err.Error())
	}
	return nil
}
