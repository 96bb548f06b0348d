// Package drive wraps the narrow slice of the Google Drive API pigeon needs:
// list a folder by path, download a file, check connectivity.
package drive

import "context"

// FolderMimeType marks sub-folder entries in listings.
const FolderMimeType = "application/vnd.google-apps.folder"

// File is the remote file metadata pigeon cares about.
type File struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime string
	Size         int64
}

// Client is the remote file-listing/download capability.
type Client interface {
	// ListFolder lists entries under a slash-delimited folder path, e.g.
	// "/Voice Recordings". An unknown path is a NotFound error.
	ListFolder(ctx context.Context, folderPath string) ([]File, error)

	// Download fetches the file with the given ID to destPath.
	Download(ctx context.Context, fileID, destPath string) error

	// Ping performs a lightweight connectivity check.
	Ping(ctx context.Context) error
}
