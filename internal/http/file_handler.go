package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-service/internal/storage"
)

// FileHandler expone el blob store por usuario autenticado.
type FileHandler struct {
	logger *zap.Logger
	store  storage.BlobStore
}

// NewFileHandler acepta store nil: las rutas responden 503.
func NewFileHandler(logger *zap.Logger, store storage.BlobStore) *FileHandler {
	return &FileHandler{logger: logger, store: store}
}

// Upload maneja PUT /users/files/:name (multipart, campo file).
func (h *FileHandler) Upload(c *gin.Context) {
	userID, ok := h.prepare(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	defer file.Close()

	name := c.Param("name")
	if err := h.store.Upload(c.Request.Context(), userID, name, file, header.Size, header.Header.Get("Content-Type")); err != nil {
		h.fail(c, "upload file failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": name, "size": header.Size})
}

// Download maneja GET /users/files/:name.
func (h *FileHandler) Download(c *gin.Context) {
	userID, ok := h.prepare(c)
	if !ok {
		return
	}
	name := c.Param("name")
	obj, err := h.store.Download(c.Request.Context(), userID, name)
	if err != nil {
		h.fail(c, "download file failed", err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.DataFromReader(http.StatusOK, obj.Size, contentType, obj.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}

// Delete maneja DELETE /users/files/:name.
func (h *FileHandler) Delete(c *gin.Context) {
	userID, ok := h.prepare(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), userID, c.Param("name")); err != nil {
		h.fail(c, "delete file failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FileHandler) prepare(c *gin.Context) (int64, bool) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return 0, false
	}
	userID, ok := GetAuthUserID(c)
	if !ok {
		unauthorized(c, "invalid token")
		return 0, false
	}
	return userID, true
}

func (h *FileHandler) fail(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
	case errors.Is(err, storage.ErrObjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "storage error"})
	}
}
