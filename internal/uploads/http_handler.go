package uploads

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OpenNSW/formengine/internal/api"
	"github.com/OpenNSW/formengine/internal/uploads/drivers"
)

// multipartMemory is how much of a multipart body is held in memory before spilling to disk.
const multipartMemory = 32 << 20

type HTTPHandler struct {
	Service *UploadService
}

func NewHTTPHandler(service *UploadService) *HTTPHandler {
	return &HTTPHandler{Service: service}
}

// Register mounts the upload routes on g.
func (h *HTTPHandler) Register(g *gin.RouterGroup) {
	g.POST("/uploads", h.Upload)
	g.GET("/uploads/:key", h.Download)
	g.DELETE("/uploads/:key", h.Delete)
}

// Upload handles POST /uploads with a multipart "file" part.
func (h *HTTPHandler) Upload(c *gin.Context) {
	metadata, ok := h.ReceiveFile(c)
	if !ok {
		return
	}
	api.WriteJSON(c, http.StatusCreated, metadata)
}

// ReceiveFile stores the multipart "file" part of the request. On failure it has already
// written the error response.
func (h *HTTPHandler) ReceiveFile(c *gin.Context) (*FileMetadata, bool) {
	if h.Service.MaxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Service.MaxSize+multipartMemory)
	}
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, "failed to parse multipart form")
		return nil, false
	}

	header, err := c.FormFile("file")
	if err != nil {
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, "file is required")
		return nil, false
	}
	file, err := header.Open()
	if err != nil {
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, "failed to read file")
		return nil, false
	}
	defer file.Close()

	metadata, err := h.Service.Upload(c.Request.Context(), header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if errors.Is(err, ErrTooLarge) {
		api.WriteError(c, http.StatusRequestEntityTooLarge, api.CodeBadRequest, err.Error())
		return nil, false
	}
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "upload failed", "error", err)
		api.WriteError(c, http.StatusInternalServerError, api.CodeInternal, "upload failed")
		return nil, false
	}
	return metadata, true
}

// Download handles GET /uploads/:key and streams the stored bytes.
func (h *HTTPHandler) Download(c *gin.Context) {
	reader, contentType, err := h.Service.Download(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeStorageError(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		slog.WarnContext(c.Request.Context(), "download interrupted", "key", c.Param("key"), "error", err)
	}
}

// Delete handles DELETE /uploads/:key
func (h *HTTPHandler) Delete(c *gin.Context) {
	if err := h.Service.Delete(c.Request.Context(), c.Param("key")); err != nil {
		writeStorageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeStorageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		api.WriteError(c, http.StatusNotFound, api.CodeNotFound, "file not found")
	case errors.Is(err, drivers.ErrInvalidKey):
		api.WriteError(c, http.StatusBadRequest, api.CodeBadRequest, err.Error())
	default:
		slog.ErrorContext(c.Request.Context(), "storage request failed", "key", c.Param("key"), "error", err)
		api.WriteError(c, http.StatusInternalServerError, api.CodeInternal, "storage request failed")
	}
}
