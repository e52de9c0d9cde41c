// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
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
	"github.com/stretchr/testify/require"
)

type testCase struct {
	name             string
	requestHeaders   map[string]string
	requestBody      map[string]any
	queryParams      map[string]string
	expectedStatus   int
	expectedResponse map[string]any
}

// fakeRasterizer hands back one synthetic page per call, so any uploaded
// "pdf" flows through the whole pipeline without a real rasterizer.
type fakeRasterizer struct {
	pages []image.Image
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ []byte, _ int) ([]image.Image, error) {
	return f.pages, nil
}

// fakeEngine scripts recognition by page image width.
type fakeEngine struct {
	mu      sync.Mutex
	results map[int]ocr.Result
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, img image.Image) (ocr.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result, ok := f.results[img.Bounds().Dx()]
	if !ok {
		return ocr.Result{}, errors.New("unscripted page")
	}
	return result, nil
}

func testPageImage(width int) image.Image {
	img := image.NewGray(image.Rect(0, 0, width, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	for x := 2; x < width-2; x++ {
		img.SetGray(x, 20, color.Gray{Y: 0})
	}
	return img
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func setupTestServer(t *testing.T, assert *require.Assertions, rasterizer normalize.Rasterizer, engine ocr.Engine) *gin.Engine {

	t.Setenv("ENV", "test")
	t.Setenv("STORAGE_PATH", t.TempDir())

	cfg, err := config.Load("test")
	assert.NoError(err, "could not load config")

	testLogger := newTestLogger()

	store, err := docstore.New(testLogger, cfg)
	assert.NoError(err, "could not create document store")

	searchDB, err := searchdb.New(testLogger, cfg)
	assert.NoError(err, "could not create search database")

	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	ctx, cancel := context.WithCancel(context.Background())

	service := ingest.New(ctx, testLogger, cfg,
		normalize.New(testLogger, cfg, rasterizer),
		ocr.NewAdapter(testLogger, cfg, engine),
		keywords.New(cfg),
		store, searchDB)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupDocuments(router, testLogger, cfg, service, validator)
	SetupSearch(router, testLogger, cfg, searchDB, validator)
	SetupIndex(router, testLogger, service)

	t.Cleanup(func() {
		cancel()
		assert.NoError(store.Close(), "could not close document store")
		assert.NoError(searchDB.Close(), "could not close search database")
	})

	return router
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]any, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		endpoint = endpoint + "?"
		for key, value := range queryParams {
			if endpoint[len(endpoint)-1] != '?' {
				endpoint = endpoint + "&"
			}
			endpoint = endpoint + key + "=" + value
		}
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

func makeUploadRequest(router *gin.Engine, assert *require.Assertions, filename string, content []byte) *httptest.ResponseRecorder {

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		assert.NoError(err)
		_, err = part.Write(content)
		assert.NoError(err)
	}
	assert.NoError(writer.Close())

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, "/api/documents", &body)
	assert.NoError(err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	router.ServeHTTP(w, req)
	return w
}

func uploadAndWaitReady(t *testing.T, router *gin.Engine, assert *require.Assertions, filename string, content []byte) string {

	w := makeUploadRequest(router, assert, filename, content)
	assert.Equal(http.StatusAccepted, w.Code, "upload should be accepted, got %s", w.Body.String())

	var uploadResponse map[string]any
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &uploadResponse))
	id := uploadResponse["data"].(map[string]any)["document_id"].(string)
	assert.NotEmpty(id)

	require.Eventually(t, func() bool {
		w := makeTestHTTPRequest(router, assert, http.MethodGet, "/api/documents/"+id, nil, nil, nil)
		if w.Code != http.StatusOK {
			return false
		}
		var getResponse map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &getResponse); err != nil {
			return false
		}
		return getResponse["data"].(map[string]any)["status"] == "ready"
	}, 5*time.Second, 20*time.Millisecond, "document %s never became ready", id)

	return id
}

func decodeResponseData(assert *require.Assertions, w *httptest.ResponseRecorder) map[string]any {
	var responseMap map[string]any
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &responseMap))

	data, ok := responseMap["data"].(map[string]any)
	assert.True(ok, "expected data object in response, got %s", w.Body.String())
	return data
}
