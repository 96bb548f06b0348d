// Package source defines the input sources that feed pigeon's inbox: a
// Google Drive folder tree, Slack channels, and optionally a Telegram bot.
package source

import "context"

// Origin tags where a SourceFile came from.
type Origin string

const (
	OriginDrive    Origin = "drive"
	OriginSlack    Origin = "slack"
	OriginTelegram Origin = "telegram"
)

// SourceFile is the uniform record an input source emits for one fetched
// item. Immutable once constructed.
type SourceFile struct {
	// Path is the local location of the fetched artifact.
	Path string
	// Origin identifies the producing source.
	Origin Origin
	// Timestamp is ISO-8601, source-provided or wall-clock fallback.
	Timestamp string
	// Metadata carries source-specific details: original name, remote ID,
	// mime type, size, channel, user.
	Metadata map[string]string
}

// Source is a pollable input. Implementations are selected at construction
// time from configuration.
type Source interface {
	// Name returns a fixed identifying string.
	Name() string

	// Poll performs one discovery-and-fetch attempt and returns at most one
	// new SourceFile, or nil if nothing new was found.
	Poll(ctx context.Context) (*SourceFile, error)

	// Available performs a lightweight connectivity check without side
	// effects.
	Available(ctx context.Context) error
}
