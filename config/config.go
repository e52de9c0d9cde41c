package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	defaultRasterDPI      = 300
	defaultOCRTimeout     = 30 * time.Second
	defaultOCRLanguage    = "eng"
	defaultWorkerCount    = 4
	defaultKeywordLimit   = 10
	defaultMaxUploadBytes = 50 * 1024 * 1024
	defaultSearchLimit    = 50

	defaultKeywordBoost  = 3.0
	defaultFilenameBoost = 2.0
	defaultFullTextBoost = 1.0
)

type Config struct {
	config *viper.Viper
}

func Load(env string) (*Config, error) {

	if len(env) == 0 {
		if env = os.Getenv(keyEnv); len(env) == 0 {
			env = envLocal
		}
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

func (c *Config) GetPort() string {
	port := c.config.GetString("PORT")
	if len(port) == 0 {
		port = c.config.GetString("server.port")
	}

	return port
}

func (c *Config) GetStoragePath() string {
	storagePath := c.config.GetString("STORAGE_PATH")
	if len(storagePath) == 0 {
		storagePath = c.config.GetString("database.storage_path")
	}

	return storagePath
}

func (c *Config) GetDocStorePath() string {
	docStorePath := c.config.GetString("DOCSTORE_PATH")
	if len(docStorePath) == 0 {
		docStorePath = c.config.GetString("database.docstore_path")
	}

	return filepath.Join(c.GetStoragePath(), docStorePath)
}

func (c *Config) GetIndexPath() string {
	indexPath := c.config.GetString("INDEX_PATH")
	if len(indexPath) == 0 {
		indexPath = c.config.GetString("database.index_path")
	}

	return filepath.Join(c.GetStoragePath(), indexPath)
}

// GetRasterDPI is the resolution at which PDF pages are rasterized before
// OCR. Higher values improve recognition accuracy at the cost of time.
func (c *Config) GetRasterDPI() int {
	dpi := c.config.GetInt("RASTER_DPI")
	if dpi == 0 {
		dpi = c.config.GetInt("ingest.raster_dpi")
	}
	if dpi == 0 {
		dpi = defaultRasterDPI
	}

	return dpi
}

func (c *Config) GetOCRTimeout() time.Duration {
	timeout := c.config.GetDuration("OCR_TIMEOUT")
	if timeout == 0 {
		timeout = c.config.GetDuration("ingest.ocr_timeout")
	}
	if timeout == 0 {
		timeout = defaultOCRTimeout
	}

	return timeout
}

func (c *Config) GetOCRLanguage() string {
	language := c.config.GetString("OCR_LANGUAGE")
	if len(language) == 0 {
		language = c.config.GetString("ingest.ocr_language")
	}
	if len(language) == 0 {
		language = defaultOCRLanguage
	}

	return language
}

func (c *Config) GetWorkerCount() int {
	workers := c.config.GetInt("INGEST_WORKERS")
	if workers == 0 {
		workers = c.config.GetInt("ingest.workers")
	}
	if workers == 0 {
		workers = defaultWorkerCount
	}

	return workers
}

func (c *Config) GetKeywordLimit() int {
	limit := c.config.GetInt("KEYWORD_LIMIT")
	if limit == 0 {
		limit = c.config.GetInt("ingest.keyword_limit")
	}
	if limit == 0 {
		limit = defaultKeywordLimit
	}

	return limit
}

func (c *Config) GetStopwords() []string {
	stopwords := c.config.GetStringSlice("ingest.stopwords")

	return stopwords
}

func (c *Config) GetMaxUploadBytes() int64 {
	maxBytes := c.config.GetInt64("MAX_UPLOAD_BYTES")
	if maxBytes == 0 {
		maxBytes = c.config.GetInt64("server.max_upload_bytes")
	}
	if maxBytes == 0 {
		maxBytes = defaultMaxUploadBytes
	}

	return maxBytes
}

func (c *Config) GetSearchLimit() int {
	limit := c.config.GetInt("SEARCH_LIMIT")
	if limit == 0 {
		limit = c.config.GetInt("search.result_cap")
	}
	if limit == 0 {
		limit = defaultSearchLimit
	}

	return limit
}

// Relevance weights are configurable pending product-level tuning.
func (c *Config) GetKeywordBoost() float64 {
	boost := c.config.GetFloat64("search.keyword_boost")
	if boost == 0 {
		boost = defaultKeywordBoost
	}

	return boost
}

func (c *Config) GetFilenameBoost() float64 {
	boost := c.config.GetFloat64("search.filename_boost")
	if boost == 0 {
		boost = defaultFilenameBoost
	}

	return boost
}

func (c *Config) GetFullTextBoost() float64 {
	boost := c.config.GetFloat64("search.fulltext_boost")
	if boost == 0 {
		boost = defaultFullTextBoost
	}

	return boost
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
