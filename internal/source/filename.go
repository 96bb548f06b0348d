package source

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	pigeonErrors "github.com/jjurach/pigeon/internal/errors"
)

var specialChars = regexp.MustCompile(`[<>:"/\\|?*()]`)

// maxCollisionAttempts bounds UniquePath's suffix search so an adversarial
// directory cannot loop it forever.
const maxCollisionAttempts = 1000

// Sanitize strips the extension, replaces spaces with hyphens, deletes the
// characters <>:"/\|?*() from the stem, and reattaches the extension.
// Idempotent: sanitizing a sanitized name returns it unchanged.
func Sanitize(original string) string {
	ext := filepath.Ext(original)
	name := strings.TrimSuffix(original, ext)
	name = strings.ReplaceAll(name, " ", "-")
	name = specialChars.ReplaceAllString(name, "")
	return name + ext
}

// Timestamped prepends a YYYY-MM-DD_HH-MM-SS_ prefix to the sanitized name.
func Timestamped(original string, now time.Time) string {
	return now.Format("2006-01-02_15-04-05") + "_" + Sanitize(original)
}

// UniquePath returns path if it is free, otherwise the first variant with an
// incrementing numeric suffix before the extension that does not exist.
// Errors once the bounded attempt count is exhausted.
func UniquePath(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)

	for counter := 1; counter <= maxCollisionAttempts; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}

	return "", pigeonErrors.Conflict(fmt.Sprintf(
		"no free name for %s after %d attempts", path, maxCollisionAttempts))
}
