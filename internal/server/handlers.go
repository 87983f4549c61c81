package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benyonsports/docstore/internal/auth"
	"github.com/benyonsports/docstore/internal/observability"
	"github.com/benyonsports/docstore/internal/preview"
	"github.com/benyonsports/docstore/internal/storage"
)

// handlers holds the dependencies shared by the HTTP handlers.
type handlers struct {
	store     *storage.Store
	preview   *preview.Service
	refresher auth.TokenRefresher
	logger    observability.Logger
}

// defaultNewlyAddedDays is the lookback window when the caller gives no
// usable "days" value.
const defaultNewlyAddedDays = 3

// pathRequest is the body of path-addressed file operations.
type pathRequest struct {
	Path string `json:"path" binding:"required"`
}

// searchRequest is the body of the search operation.
type searchRequest struct {
	Query string `json:"query" binding:"required"`
}

// root answers liveness probes and the index route.
func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "docstore"})
}

// upload stores a multipart document. The optional "path" form field
// places the file inside the store; it defaults to the upload's own name.
func (h *handlers) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "multipart field 'file' is required"})
		return
	}

	path := c.PostForm("path")
	if path == "" {
		path = fh.Filename
	}

	src, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "cannot open uploaded file"})
		return
	}
	defer src.Close()

	written, err := h.store.Save(c.Request.Context(), path, src)
	if err != nil {
		h.storageError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"path": path, "size": written})
}

// uploadMultiple stores a batch of files in one request. The
// "directory_structure" form field is a JSON object mapping each uploaded
// file name to the directory it belongs in; unmapped files land at the
// store root under their own name.
func (h *handlers) uploadMultiple(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "multipart form is required"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No files uploaded"})
		return
	}

	structureField := c.PostForm("directory_structure")
	if structureField == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "directory_structure field is required"})
		return
	}
	var structure map[string]string
	if err := json.Unmarshal([]byte(structureField), &structure); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "directory_structure must be a JSON object"})
		return
	}

	saved := make([]gin.H, 0, len(files))
	for _, fh := range files {
		target := fh.Filename
		if dir, ok := structure[fh.Filename]; ok && dir != "" {
			target = path.Join(dir, fh.Filename)
		}

		src, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "cannot open uploaded file " + fh.Filename})
			return
		}

		written, err := h.store.Save(c.Request.Context(), target, src)
		_ = src.Close()
		if err != nil {
			h.storageError(c, err)
			return
		}
		saved = append(saved, gin.H{"path": target, "size": written})
	}

	c.JSON(http.StatusCreated, gin.H{"uploaded": saved})
}

// newlyAdded lists files modified within the last N days. The window comes
// from the "days" query parameter; absent or below 1 it falls back to the
// default.
func (h *handlers) newlyAdded(c *gin.Context) {
	days := defaultNewlyAddedDays
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "days must be an integer"})
			return
		}
		if n >= 1 {
			days = n
		}
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	entries, err := h.store.NewlyAdded(c.Request.Context(), cutoff)
	if err != nil {
		h.storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"days": days, "files": entries})
}

// search returns store entries whose name contains the query.
func (h *handlers) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "field 'query' is required"})
		return
	}

	matches, err := h.store.Search(c.Request.Context(), req.Query)
	if err != nil {
		h.storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": matches})
}

// download streams a stored document to the client.
func (h *handlers) download(c *gin.Context) {
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "field 'path' is required"})
		return
	}

	f, info, err := h.store.Open(req.Path)
	if err != nil {
		h.storageError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", `attachment; filename="`+info.Name()+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", f, nil)
}

// deletePath removes a stored file or directory.
func (h *handlers) deletePath(c *gin.Context) {
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "field 'path' is required"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), req.Path); err != nil {
		h.storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": req.Path})
}

// createDir creates a directory in the store.
func (h *handlers) createDir(c *gin.Context) {
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "field 'path' is required"})
		return
	}

	if err := h.store.CreateDir(req.Path); err != nil {
		h.storageError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"created": req.Path})
}

// dirContents lists a directory along with the caller's access views, so
// the front-end can grey out operations the caller cannot perform.
func (h *handlers) dirContents(c *gin.Context) {
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "field 'path' is required"})
		return
	}

	identity, ok := auth.IdentityFromGin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}

	entries, err := h.store.List(c.Request.Context(), req.Path)
	if err != nil {
		h.storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"path":        req.Path,
		"entries":     entries,
		"roles":       identity.Roles,
		"permissions": identity.Permissions,
	})
}

// previewDoc returns document info, or one rendered page when the "page"
// query parameter is present.
func (h *handlers) previewDoc(c *gin.Context) {
	path := c.Param("path")

	if pageParam := c.Query("page"); pageParam != "" {
		page, err := strconv.Atoi(pageParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "page must be an integer"})
			return
		}

		artifact, err := h.preview.Page(path, page)
		if err != nil {
			h.storageError(c, err)
			return
		}
		c.File(artifact)
		return
	}

	info, err := h.preview.Info(path)
	if err != nil {
		h.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// userinfo echoes the authenticated identity, including the roles granted
// under the primary front-end client.
func (h *handlers) userinfo(c *gin.Context) {
	identity, ok := auth.IdentityFromGin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sub":           identity.Subject,
		"name":          identity.Username,
		"email":         identity.Email,
		"roles":         identity.Roles,
		"permissions":   identity.Permissions,
		"primary_roles": auth.PrimaryRolesFromGin(c),
	})
}

// refreshRequest carries the refresh grant.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// refresh exchanges a refresh token for a new token pair. The route takes
// no bearer token: the caller's access token is typically expired by the
// time it needs this.
func (h *handlers) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "field 'refresh_token' is required"})
		return
	}

	pair, err := h.refresher.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Debug("token refresh failed", observability.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token refresh failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, pair)
}

// storageError maps store errors onto HTTP statuses.
func (h *handlers) storageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, storage.ErrInvalidPath), errors.Is(err, storage.ErrNotDirectory):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case errors.Is(err, storage.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	default:
		h.logger.Error("storage operation failed", observability.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	}
}
