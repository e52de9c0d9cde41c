package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paperbase/paperbase/config"
	"github.com/paperbase/paperbase/db/docstore"
	"github.com/paperbase/paperbase/db/searchdb"
	"github.com/paperbase/paperbase/logger"
	"github.com/paperbase/paperbase/services/ingest"
	"github.com/paperbase/paperbase/services/keywords"
	"github.com/paperbase/paperbase/services/normalize"
	"github.com/paperbase/paperbase/services/ocr"
	"github.com/paperbase/paperbase/validation"
)

type server struct {
	router     *gin.Engine
	httpServer *http.Server
	cfg        *config.Config
	store      docstore.DB
	searchdb   searchdb.DB
	ingest     *ingest.Service
	validator  *validation.Validator
	logger     logger.Logger
}

func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)

	defer cancel()

	s := &server{
		cfg:    cfg,
		logger: logger.New(),
	}
	if err := s.setupDependencies(ctx); err != nil {
		return err
	}
	s.setupRouter()
	s.setupHTTPServer()
	s.setupGracefulShutdown(ctx)

	return nil
}

func (s *server) setupDependencies(ctx context.Context) error {
	var err error
	s.store, err = docstore.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating document store", "err", err.Error())
		return err
	}
	s.searchdb, err = searchdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating search index", "err", err.Error())
		return err
	}
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		return err
	}

	normalizer := normalize.New(s.logger, s.cfg, normalize.NewFitzRasterizer())
	engine := ocr.NewTesseractEngine(s.cfg.GetOCRLanguage())
	recognizer := ocr.NewAdapter(s.logger, s.cfg, engine)
	extractor := keywords.New(s.cfg)

	s.ingest = ingest.New(ctx, s.logger, s.cfg, normalizer, recognizer, extractor, s.store, s.searchdb)

	return nil

}

func (s *server) setupRouter() {
	router := newRouter()

	router.Use(loggingMiddleware(s.logger))

	setupRoutes(router, s.logger, s.cfg, s.ingest, s.searchdb, s.validator)

	s.router = router
}

func (s *server) setupHTTPServer() {

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
}

func (s *server) setupGracefulShutdown(ctx context.Context) {

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.logger.Info("starting to shut down http server")
		shutdownCtx := context.Background()
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer cancel()
		s.store.Close()
		s.searchdb.Close()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down http server", "err", err)
			return
		}
		s.logger.Info("shut down http server successfully")
	}()

	wg.Wait()
}
