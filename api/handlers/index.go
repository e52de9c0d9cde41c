package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paperbase/paperbase/logger"
	"github.com/paperbase/paperbase/services/ingest"
)

type RebuildResponse struct {
	IndexedDocuments int `json:"indexed_documents"`
}

func SetupIndex(router *gin.Engine, logger logger.Logger, service *ingest.Service) {
	router.POST("/api/index/rebuild", handleRebuild(service, logger))

}

// handleRebuild reconstructs the search index from the document store. The
// store is the source of truth, so this is always safe to run.
func handleRebuild(service *ingest.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := service.RebuildIndex()
		if err != nil {
			logger.Error("could not rebuild index", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusInternalServerError, []string{err.Error()})
			return
		}

		writeResponse(c, RebuildResponse{IndexedDocuments: count}, http.StatusOK, nil)
	}
}
