// Package media serves stored card media through the API. Cloud backends
// answer with a signed URL and the client is redirected to it; backends
// without an externally reachable URL (local storage) are streamed directly.
package media

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openboard/openboard/internal/api/respond"
	"github.com/openboard/openboard/internal/apperr"
	"github.com/openboard/openboard/internal/storage"
)

// signedURLTTL bounds how long a redirect target stays valid. Long enough
// for a client to follow the redirect and retry once, short enough that a
// leaked URL goes stale quickly.
const signedURLTTL = 15 * time.Minute

// Handlers serves media objects out of the configured storage backend.
type Handlers struct {
	store storage.Storage
}

// NewHandlers wires the media endpoint.
func NewHandlers(store storage.Storage) *Handlers {
	return &Handlers{store: store}
}

// Serve returns the media object named by the wildcard path.
// GET /v1/media/*path
func (h *Handlers) Serve(c *gin.Context) {
	ctx := c.Request.Context()

	objectPath, err := cleanPath(c.Param("path"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	exists, err := h.store.Exists(ctx, objectPath)
	if err != nil {
		respond.Error(c, apperr.Unavailable("blob store", err))
		return
	}
	if !exists {
		respond.Error(c, apperr.ErrNotFound)
		return
	}

	// Prefer handing out the backend's own URL. The local backend's URLs
	// point back at this route, so those fall through to streaming.
	if target, err := h.store.GetURL(ctx, objectPath, signedURLTTL); err == nil && externalURL(target) {
		c.Redirect(http.StatusFound, target)
		return
	}

	meta, err := h.store.GetMetadata(ctx, objectPath)
	if err != nil {
		respond.Error(c, apperr.Unavailable("blob store", err))
		return
	}

	reader, err := h.store.Download(ctx, objectPath)
	if err != nil {
		respond.Error(c, apperr.Unavailable("blob store", err))
		return
	}
	defer reader.Close()

	c.Header("Cache-Control", "public, max-age=86400")
	c.Header("ETag", `"`+meta.Checksum+`"`)
	c.DataFromReader(http.StatusOK, meta.Size, contentType(objectPath), reader, nil)
}

// cleanPath normalizes the wildcard capture and rejects traversal attempts
// before the path reaches a backend.
func cleanPath(raw string) (string, error) {
	p := strings.TrimPrefix(raw, "/")
	if p == "" {
		return "", apperr.Validation("media path is required")
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return "", apperr.Validation("invalid media path")
		}
	}
	return p, nil
}

// externalURL reports whether target points somewhere other than this
// service's own media route.
func externalURL(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return !strings.Contains(u.Path, "/v1/media/")
}

func contentType(objectPath string) string {
	if ct := mime.TypeByExtension(path.Ext(objectPath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
