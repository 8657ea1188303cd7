package media

import (
	"context"
	"io"
)

// Uploader stores one uploaded file in an external object store and
// returns its durable URL. A rejected file (bad MIME type, provider
// failure) fails only that file; batch handling is the caller's
// concern.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
}
