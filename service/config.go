package service

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds everything the service needs at startup. Values come
// from the environment, optionally overridden by a YAML file named in
// SCRIVENER_CONFIG.
type Config struct {
	Port         string `yaml:"port"`
	LogLevel     string `yaml:"log_level"`
	TempDir      string `yaml:"temp_dir"`
	ObsDBPath    string `yaml:"observability_db"`
	MCPTransport string `yaml:"mcp_transport"`

	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	OCRDPI         int   `yaml:"ocr_dpi"`
	ThumbnailDPI   int   `yaml:"thumbnail_dpi"`

	// RetentionDays bounds how long metrics, conversion events and
	// heartbeats are kept in the observability database.
	RetentionDays int `yaml:"retention_days"`

	Binaries BinaryConfig `yaml:"binaries"`
}

// BinaryConfig names the external conversion engines.
type BinaryConfig struct {
	PDFToText string `yaml:"pdftotext"`
	PDFToPPM  string `yaml:"pdftoppm"`
	Tesseract string `yaml:"tesseract"`
	Antiword  string `yaml:"antiword"`
	WPDToText string `yaml:"wpd2text"`
	FFmpeg    string `yaml:"ffmpeg"`
	FFprobe   string `yaml:"ffprobe"`
	File      string `yaml:"file"`
}

// LoadConfig assembles the configuration from environment variables,
// then applies the YAML file named in SCRIVENER_CONFIG when present.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:           env("PORT", "5050"),
		LogLevel:       env("LOG_LEVEL", "info"),
		TempDir:        env("TEMP_DIR", os.TempDir()),
		ObsDBPath:      env("OBS_DB", "db/observability.db"),
		MCPTransport:   env("MCP_TRANSPORT", ""),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 100*1024*1024),
		OCRDPI:         envInt("OCR_DPI", 300),
		ThumbnailDPI:   envInt("THUMBNAIL_DPI", 72),
		RetentionDays:  envInt("OBS_RETENTION_DAYS", 30),
		Binaries: BinaryConfig{
			PDFToText: env("PDFTOTEXT_BIN", "pdftotext"),
			PDFToPPM:  env("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract: env("TESSERACT_BIN", "tesseract"),
			Antiword:  env("ANTIWORD_BIN", "antiword"),
			WPDToText: env("WPD2TEXT_BIN", "wpd2text"),
			FFmpeg:    env("FFMPEG_BIN", "ffmpeg"),
			FFprobe:   env("FFPROBE_BIN", "ffprobe"),
			File:      env("FILE_BIN", "file"),
		},
	}

	if path := os.Getenv("SCRIVENER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
