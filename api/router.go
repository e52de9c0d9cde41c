package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paperbase/paperbase/api/handlers"
	"github.com/paperbase/paperbase/config"
	"github.com/paperbase/paperbase/db/searchdb"
	"github.com/paperbase/paperbase/logger"
	"github.com/paperbase/paperbase/services/ingest"
	"github.com/paperbase/paperbase/validation"
)

func setupRoutes(router *gin.Engine, logger logger.Logger, cfg *config.Config, ingestService *ingest.Service, searchDB searchdb.DB, validator *validation.Validator) {
	router.GET("/health", health(searchDB))

	handlers.SetupDocuments(router, logger, cfg, ingestService, validator)
	handlers.SetupSearch(router, logger, cfg, searchDB, validator)
	handlers.SetupIndex(router, logger, ingestService)

}

func health(searchDB searchdb.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := searchDB.GetDocCount()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "err": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "indexed_documents": count})
	}
}

func newRouter() *gin.Engine {
	router := gin.Default()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())

	return router
}
