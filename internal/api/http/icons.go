package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/handle"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon/imaging"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/storage"
)

// IconResponse describes a live display handle
type IconResponse struct {
	AppID      string    `json:"app_id"`
	HandleID   string    `json:"handle_id"`
	CreatedAt  time.Time `json:"created_at"`
	DisplayRef string    `json:"display_ref"`
}

// BindingRequest carries the site to resolve for an app
type BindingRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// WarmResponse summarizes a batch ensure over the app catalog
type WarmResponse struct {
	Total  int               `json:"total"`
	Failed map[string]string `json:"failed"`
}

func newIconResponse(h *handle.Handle) IconResponse {
	return IconResponse{
		AppID:      h.AppID(),
		HandleID:   h.ID(),
		CreatedAt:  h.CreatedAt(),
		DisplayRef: h.DisplayRef(),
	}
}

// appID reads and validates the :id path parameter
func appID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := storage.ValidateAppID(id); err != nil {
		abortWithError(c, err)
		return "", false
	}
	return id, true
}

// ListIcons returns the app ids with a live handle
func (h *Handlers) ListIcons(c *gin.Context) {
	ids := h.icons.AppIDs()
	c.JSON(http.StatusOK, gin.H{
		"icons": ids,
		"count": len(ids),
	})
}

// GetIcon returns the live handle for an app
func (h *Handlers) GetIcon(c *gin.Context) {
	id, ok := appID(c)
	if !ok {
		return
	}

	hd, found := h.icons.Lookup(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no icon for app " + id})
		return
	}
	c.JSON(http.StatusOK, newIconResponse(hd))
}

// GetIconRaw serves the icon bytes, from the live handle or from storage
func (h *Handlers) GetIconRaw(c *gin.Context) {
	id, ok := appID(c)
	if !ok {
		return
	}

	var data []byte
	if hd, found := h.icons.Lookup(id); found {
		data = hd.Bytes()
		c.Header("X-Icon-Handle", hd.ID())
	}
	if data == nil {
		stored, err := h.store.Load(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		data = stored
	}

	etag := h.hasher.ETag(data)
	c.Header("Cache-Control", "no-cache")
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, imaging.Detect(data), data)
}

// EnsureIcon makes sure the app has an icon. Without a url in the body the
// binding is looked up in the app catalog.
func (h *Handlers) EnsureIcon(c *gin.Context) {
	id, ok := appID(c)
	if !ok {
		return
	}
	b, ok := h.binding(c, id)
	if !ok {
		return
	}

	ctx, end := h.startSpan(c, "icon.ensure", id)
	hd, err := h.icons.EnsureIcon(ctx, b)
	end(err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newIconResponse(hd))
}

// RefreshIcon resolves the site again and replaces the icon
func (h *Handlers) RefreshIcon(c *gin.Context) {
	id, ok := appID(c)
	if !ok {
		return
	}
	b, ok := h.binding(c, id)
	if !ok {
		return
	}

	ctx, end := h.startSpan(c, "icon.refresh", id)
	hd, err := h.icons.RefreshIcon(ctx, b)
	end(err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newIconResponse(hd))
}

// UploadIcon installs a user supplied image, sent either as the raw request
// body or as the "file" field of a multipart form
func (h *Handlers) UploadIcon(c *gin.Context) {
	id, ok := appID(c)
	if !ok {
		return
	}

	data, err := h.readUpload(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx, end := h.startSpan(c, "icon.upload", id)
	hd, err := h.icons.UploadIcon(ctx, id, data)
	end(err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newIconResponse(hd))
}

// DeleteIcon releases the live handle. With ?purge=true the stored bytes
// are deleted as well.
func (h *Handlers) DeleteIcon(c *gin.Context) {
	id, ok := appID(c)
	if !ok {
		return
	}

	if c.Query("purge") != "true" {
		c.JSON(http.StatusOK, gin.H{"released": h.icons.ReleaseIcon(id)})
		return
	}

	ctx, end := h.startSpan(c, "icon.purge", id)
	err := h.icons.PurgeIcon(ctx, id)
	end(err)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": true})
}

// WarmIcons ensures an icon for every app in the catalog
func (h *Handlers) WarmIcons(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no app catalog configured"})
		return
	}

	bindings, err := h.catalog.Bindings(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load app catalog", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx, end := h.startSpan(c, "icon.warm", "")
	failed := h.icons.EnsureAll(ctx, bindings)
	end(nil)

	resp := WarmResponse{Total: len(bindings), Failed: make(map[string]string, len(failed))}
	for id, err := range failed {
		resp.Failed[id] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// binding builds the binding for id from the request body or the catalog
func (h *Handlers) binding(c *gin.Context, id string) (icon.Binding, bool) {
	var req BindingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return icon.Binding{}, false
	}

	if req.URL == "" && h.catalog != nil {
		rec, found, err := h.catalog.Find(c.Request.Context(), id)
		if err != nil {
			h.logger.Warn("Catalog lookup failed", zap.String("app_id", id), zap.Error(err))
		}
		if found {
			b := rec.Binding()
			if req.Name != "" {
				b.Name = req.Name
			}
			return b, true
		}
	}

	return icon.Binding{AppID: id, URL: req.URL, Name: req.Name}, true
}

func (h *Handlers) readUpload(c *gin.Context) ([]byte, error) {
	limit := int64(h.icons.MaxUploadBytes()) + 1

	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, limit))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", icon.ErrInvalidImage, err)
		}
		return data, nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", icon.ErrInvalidImage, err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", icon.ErrInvalidImage, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", icon.ErrInvalidImage, err)
	}
	return data, nil
}
