package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chrisndirangu54/standstill/internal/repository"
	"github.com/chrisndirangu54/standstill/internal/segmenter"
	"github.com/chrisndirangu54/standstill/internal/service"
	"github.com/chrisndirangu54/standstill/internal/trackio"
	"github.com/chrisndirangu54/standstill/pkg/response"
)

// SegmentHandler handles stateless segmentation requests
type SegmentHandler struct {
	service  *service.SegmentService
	maxBytes int64
}

// NewSegmentHandler creates a new segment handler. Uploads larger than
// maxBytes are rejected.
func NewSegmentHandler(service *service.SegmentService, maxBytes int64) *SegmentHandler {
	return &SegmentHandler{service: service, maxBytes: maxBytes}
}

// Preview handles POST /api/v1/segment
func (h *SegmentHandler) Preview(c *gin.Context) {
	up, opts, ok := readUpload(c, h.maxBytes, h.service.Defaults())
	if !ok {
		return
	}
	defer up.Close()

	out, err := h.service.Preview(c.Request.Context(), up, opts)
	if err != nil {
		writeError(c, "Failed to segment track", err)
		return
	}

	response.Success(c, out)
}

// upload is the track body of a request, either a multipart "file" part or
// the raw request body.
type upload struct {
	io.Reader
	filename string
	closer   io.Closer
}

func (u *upload) Close() error {
	if u.closer != nil {
		return u.closer.Close()
	}
	return nil
}

// readUpload limits the request body, opens the track and resolves the
// segmentation options from the query. It writes the error response itself
// and returns false when the request cannot proceed.
func readUpload(c *gin.Context, maxBytes int64, defaults segmenter.Config) (*upload, service.Options, bool) {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}

	var params service.SegmentParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return nil, service.Options{}, false
	}

	up := &upload{Reader: c.Request.Body}
	mediaType, _, _ := mime.ParseMediaType(c.ContentType())
	switch {
	case mediaType == "multipart/form-data":
		fh, err := c.FormFile("file")
		if err != nil {
			writeError(c, "Missing track upload", fmt.Errorf("%w: %w", errMissingFile, err))
			return nil, service.Options{}, false
		}
		f, err := fh.Open()
		if err != nil {
			response.InternalError(c, "Failed to open upload", err)
			return nil, service.Options{}, false
		}
		up = &upload{Reader: f, filename: fh.Filename, closer: f}
	case params.Format == "":
		params.Format = formatForMediaType(mediaType)
	}

	opts, err := service.ResolveOptions(params, up.filename, defaults)
	if err != nil {
		up.Close()
		writeError(c, "Invalid segmentation parameters", err)
		return nil, service.Options{}, false
	}
	return up, opts, true
}

func formatForMediaType(mediaType string) string {
	switch mediaType {
	case "application/gpx+xml", "application/xml", "text/xml":
		return string(trackio.FormatGPX)
	case "application/geo+json", "application/json":
		return string(trackio.FormatGeoJSON)
	case "text/plain":
		return string(trackio.FormatNMEA)
	default:
		return ""
	}
}

var errMissingFile = errors.New("multipart upload has no \"file\" part")

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, repository.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRunNotCompleted):
		return http.StatusConflict
	case errors.Is(err, segmenter.ErrInvalidInput),
		errors.Is(err, segmenter.ErrInvalidConfig),
		errors.Is(err, trackio.ErrDecode),
		errors.Is(err, trackio.ErrUnsupportedFormat),
		errors.Is(err, service.ErrInvalidFilter),
		errors.Is(err, errMissingFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, message string, err error) {
	code := statusFor(err)
	switch code {
	case http.StatusRequestEntityTooLarge:
		message = "Track upload too large"
	case http.StatusNotFound:
		message = "Run not found"
	case http.StatusInternalServerError:
		// internal details stay in the logs
		c.Error(err)
		response.Error(c, code, message, nil)
		return
	}
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(code)
	}
	response.Error(c, code, message, err)
}
