package source

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jjurach/pigeon/internal/drive"
)

// DownloadLedger is the durable record of remote IDs already downloaded.
// It survives restarts; the source's own processed set does not.
type DownloadLedger interface {
	Contains(id string) bool
	MarkDownloaded(id, originalName string)
}

// DriveSource polls Google Drive folders for new files and downloads them
// into the inbox. One file per Poll call, first-found-wins across the
// configured folder list in order.
type DriveSource struct {
	client   drive.Client
	ledger   DownloadLedger
	inboxDir string
	folders  []string
	logger   *slog.Logger

	// processed tracks remote IDs handled in this process, independently of
	// the durable ledger. A restart without the ledger re-scans; the ledger
	// is what prevents re-download.
	processed map[string]struct{}
}

func NewDriveSource(client drive.Client, ledger DownloadLedger, inboxDir string, folders []string, logger *slog.Logger) *DriveSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriveSource{
		client:    client,
		ledger:    ledger,
		inboxDir:  inboxDir,
		folders:   folders,
		logger:    logger.With("source", "drive"),
		processed: make(map[string]struct{}),
	}
}

func (s *DriveSource) Name() string { return string(OriginDrive) }

func (s *DriveSource) Available(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *DriveSource) Poll(ctx context.Context) (*SourceFile, error) {
	for _, folder := range s.folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		file, err := s.pollFolder(ctx, folder)
		if err != nil {
			s.logger.Error("Folder poll failed", "folder", folder, "error", err)
			continue
		}
		if file != nil {
			return file, nil
		}
	}
	return nil, nil
}

func (s *DriveSource) pollFolder(ctx context.Context, folder string) (*SourceFile, error) {
	files, err := s.client.ListFolder(ctx, folder)
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		if f.MimeType == drive.FolderMimeType {
			continue
		}
		if _, ok := s.processed[f.ID]; ok {
			continue
		}
		if s.ledger != nil && s.ledger.Contains(f.ID) {
			s.processed[f.ID] = struct{}{}
			continue
		}
		return s.download(ctx, f, folder)
	}
	return nil, nil
}

func (s *DriveSource) download(ctx context.Context, f drive.File, folder string) (*SourceFile, error) {
	destPath := filepath.Join(s.inboxDir, Timestamped(f.Name, time.Now()))
	destPath, err := UniquePath(destPath)
	if err != nil {
		return nil, err
	}

	if err := s.client.Download(ctx, f.ID, destPath); err != nil {
		return nil, err
	}

	s.processed[f.ID] = struct{}{}
	if s.ledger != nil {
		s.ledger.MarkDownloaded(f.ID, f.Name)
	}

	timestamp := f.ModifiedTime
	if timestamp == "" {
		timestamp = time.Now().Format(time.RFC3339)
	}

	s.logger.Info("Downloaded new file", "name", f.Name, "dest", filepath.Base(destPath))

	return &SourceFile{
		Path:      destPath,
		Origin:    OriginDrive,
		Timestamp: timestamp,
		Metadata: map[string]string{
			"folder":        folder,
			"original_name": f.Name,
			"file_id":       f.ID,
			"mime_type":     f.MimeType,
			"size":          strconv.FormatInt(f.Size, 10),
		},
	}, nil
}
