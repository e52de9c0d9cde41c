package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paperbase/paperbase/config"
	"github.com/paperbase/paperbase/db/docstore"
	"github.com/paperbase/paperbase/logger"
	"github.com/paperbase/paperbase/services/ingest"
	"github.com/paperbase/paperbase/validation"
)

const defaultDocumentsPerPage = 20

type UploadRequest struct {
	Filename string `json:"filename" validate:"required,min=1,max=255"`
	Format   string `json:"format" validate:"required,valid_format"`
}

type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

type ListRequest struct {
	PerPage int `form:"per_page" validate:"min=0,max=100"`
	Page    int `form:"page" validate:"min=0"`
}

func (r *ListRequest) setDefaults() {
	if r.PerPage == 0 {
		r.PerPage = defaultDocumentsPerPage
	}

	if r.Page == 0 {
		r.Page = 1
	}
}

type ListResponse struct {
	Documents   []docstore.Summary `json:"documents"`
	PageDetails Pagination         `json:"page_details"`
}

func SetupDocuments(router *gin.Engine, logger logger.Logger, cfg *config.Config, service *ingest.Service, validator *validation.Validator) {
	router.POST("/api/documents", handleUpload(service, logger, cfg, validator))
	router.GET("/api/documents", handleList(service, logger, validator))
	router.GET("/api/documents/:id", handleGet(service, logger))
	router.DELETE("/api/documents/:id", handleDelete(service, logger))

}

func handleUpload(service *ingest.Service, logger logger.Logger, cfg *config.Config, validator *validation.Validator) gin.HandlerFunc {
	maxUploadBytes := cfg.GetMaxUploadBytes()

	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

		fileHeader, err := c.FormFile("file")
		if err != nil {
			logger.Warn("could not extract file from upload request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"no file provided"})
			return
		}

		if fileHeader.Size > maxUploadBytes {
			c.Abort()
			writeResponse(c, nil, http.StatusRequestEntityTooLarge, []string{"file exceeds upload size limit"})
			return
		}

		filename := sanitizeFilename(fileHeader.Filename)
		request := UploadRequest{
			Filename: filename,
			Format:   strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."),
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate upload request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			logger.Error("could not open uploaded file", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{"failed to read uploaded file"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			logger.Error("could not read uploaded file", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{"failed to read uploaded file"})
			return
		}

		id, err := service.Ingest(data, request.Filename, request.Format)
		if err != nil {
			if errors.Is(err, ingest.ErrQueueFull) {
				c.Abort()
				writeResponse(c, nil, http.StatusServiceUnavailable, []string{err.Error()})
				return
			}
			logger.Error("could not start ingestion", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, UploadResponse{
			DocumentID: id,
			Status:     string(docstore.StatusProcessing),
		}, http.StatusAccepted, nil)
	}
}

func handleGet(service *ingest.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := service.Get(c.Param("id"))
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				c.Abort()
				writeResponse(c, nil, http.StatusNotFound, []string{err.Error()})
				return
			}
			logger.Error("could not get document", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, doc, http.StatusOK, nil)
	}
}

func handleList(service *ingest.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := ListRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from list request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request parameters"})
			return
		}
		request.setDefaults()

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate list request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		limit := request.PerPage
		offset := (request.Page - 1) * request.PerPage
		summaries, total, err := service.List(offset, limit)
		if err != nil {
			logger.Error("could not list documents", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		listResponse := ListResponse{
			Documents:   summaries,
			PageDetails: newPagination(total, request.PerPage, request.Page),
		}

		writePaginated(c, listResponse, total)
	}
}

func handleDelete(service *ingest.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := service.Delete(c.Param("id")); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				c.Abort()
				writeResponse(c, nil, http.StatusNotFound, []string{err.Error()})
				return
			}
			logger.Error("could not delete document", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, nil, http.StatusNoContent, nil)
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w.\-]`)

// sanitizeFilename keeps only the base name and replaces anything outside
// word characters, dots and dashes; uploads control this string.
func sanitizeFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	return unsafeFilenameChars.ReplaceAllString(base, "_")
}
