// Package config provides configuration loading for the ID scanner.
// Supports YAML files, a .env file, environment variables and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all calibration and runtime settings. Every heuristic constant used by
// the extraction core lives here so calibration never touches extraction logic.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	OCR        OCRConfig        `yaml:"ocr"`
	Image      ImageConfig      `yaml:"image"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Regions    RegionsConfig    `yaml:"regions"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	MRZ        MRZConfig        `yaml:"mrz"`
	Batch      BatchConfig      `yaml:"batch"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// OCRConfig holds OCR engine settings.
type OCRConfig struct {
	Engine    string        `yaml:"engine"` // gosseract or ollama
	Languages []string      `yaml:"languages"`
	Whitelist string        `yaml:"whitelist"`
	PageMode  string        `yaml:"page_mode"` // auto or single_block
	Timeout   time.Duration `yaml:"timeout"`
	PoolSize  int           `yaml:"pool_size"`
	OllamaURL string        `yaml:"ollama_url"`
	Model     string        `yaml:"model"`
}

// ImageConfig holds preprocessing settings.
type ImageConfig struct {
	Profile          string  `yaml:"profile"` // ocr or aggressive
	MaxBytes         int     `yaml:"max_bytes"`
	MaxPixels        int     `yaml:"max_pixels"`
	BlurSigma        float64 `yaml:"blur_sigma"`
	AdaptiveRadius   int     `yaml:"adaptive_radius"`
	AdaptiveBias     int     `yaml:"adaptive_bias"`
	EdgeThreshold    float64 `yaml:"edge_threshold"`
	HoughVotes       int     `yaml:"hough_votes"`
	HoughSuppression int     `yaml:"hough_suppression"`
	MaxSkew          float64 `yaml:"max_skew"`
	MinSkew          float64 `yaml:"min_skew"`
	Workers          int     `yaml:"workers"`
}

// ClassifierConfig holds the geometry heuristics of the document classifier.
type ClassifierConfig struct {
	PassportMinRatio float64 `yaml:"passport_min_ratio"`
	PassportMaxRatio float64 `yaml:"passport_max_ratio"`
	IDMinRatio       float64 `yaml:"id_min_ratio"`
	IDMaxRatio       float64 `yaml:"id_max_ratio"`
	MRZMinRun        int     `yaml:"mrz_min_run"`
	MRZMinRows       int     `yaml:"mrz_min_rows"`
	DarkLevel        uint8   `yaml:"dark_level"`
}

// Region is a fractional rectangle of the document, 0..1 on both axes.
type Region struct {
	X0 float64 `yaml:"x0"`
	Y0 float64 `yaml:"y0"`
	X1 float64 `yaml:"x1"`
	Y1 float64 `yaml:"y1"`
}

// RegionsConfig holds the region bands OCR'd separately on the front of ID cards.
type RegionsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    Region `yaml:"name"`
	Dates   Region `yaml:"dates"`
	Number  Region `yaml:"number"`
}

// Weights holds the per-field scoring weights.
type Weights struct {
	DocumentNumber float64 `yaml:"document_number"`
	FirstName      float64 `yaml:"first_name"`
	LastNames      float64 `yaml:"last_names"`
	BirthDate      float64 `yaml:"birth_date"`
	Gender         float64 `yaml:"gender"`
	Nationality    float64 `yaml:"nationality"`
	ExpiryDate     float64 `yaml:"expiry_date"`
	ChecksumBonus  float64 `yaml:"checksum_bonus"`
	Address        float64 `yaml:"address"`
	PostalCode     float64 `yaml:"postal_code"`
	Province       float64 `yaml:"province"`
	Municipality   float64 `yaml:"municipality"`
}

// ScoringConfig holds confidence weights and thresholds.
type ScoringConfig struct {
	Weights         Weights `yaml:"weights"`
	FormatThreshold float64 `yaml:"format_threshold"`
	MinConfidence   float64 `yaml:"min_confidence"`
}

// MRZConfig controls two-digit year decoding.
type MRZConfig struct {
	// Pivot > 0 forces the static rule YY < Pivot -> 20YY. Zero derives the
	// century from the reference date instead.
	Pivot int `yaml:"pivot"`
	// ExpiryWindow is how many years ahead of the reference year an expiry date may lie.
	ExpiryWindow int `yaml:"expiry_window"`
}

// BatchConfig holds directory batch settings.
type BatchConfig struct {
	ImagesDir string `yaml:"images_dir"`
	OutputDir string `yaml:"output_dir"`
}

// Default returns the calibrated defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		OCR: OCRConfig{
			Engine:    "gosseract",
			Languages: []string{"spa", "eng"},
			Whitelist: "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789<ÁÉÍÓÚÑÜ/.:-, ",
			PageMode:  "auto",
			Timeout:   30 * time.Second,
			PoolSize:  2,
		},
		Image: ImageConfig{
			Profile:          "ocr",
			MaxBytes:         10 << 20,
			MaxPixels:        40_000_000,
			BlurSigma:        0.8,
			AdaptiveRadius:   7,
			AdaptiveBias:     10,
			EdgeThreshold:    100,
			HoughVotes:       100,
			HoughSuppression: 10,
			MaxSkew:          15,
			MinSkew:          1,
			Workers:          1,
		},
		Classifier: ClassifierConfig{
			PassportMinRatio: 1.2,
			PassportMaxRatio: 1.6,
			IDMinRatio:       1.4,
			IDMaxRatio:       1.8,
			MRZMinRun:        20,
			MRZMinRows:       2,
			DarkLevel:        100,
		},
		Regions: RegionsConfig{
			Enabled: true,
			Name:    Region{X0: 0.30, Y0: 0.15, X1: 0.95, Y1: 0.40},
			Dates:   Region{X0: 0.30, Y0: 0.40, X1: 0.95, Y1: 0.65},
			Number:  Region{X0: 0.00, Y0: 0.80, X1: 1.00, Y1: 1.00},
		},
		Scoring: ScoringConfig{
			Weights: Weights{
				DocumentNumber: 2.0,
				FirstName:      1.5,
				LastNames:      1.5,
				BirthDate:      1.0,
				Gender:         0.5,
				Nationality:    0.5,
				ExpiryDate:     0.5,
				ChecksumBonus:  1.0,
				Address:        1.0,
				PostalCode:     0.5,
				Province:       0.5,
				Municipality:   0.5,
			},
			FormatThreshold: 0.3,
			MinConfidence:   0.25,
		},
		MRZ:   MRZConfig{Pivot: 0, ExpiryWindow: 20},
		Batch: BatchConfig{ImagesDir: "images", OutputDir: "output"},
	}
}

// Load reads configuration from path (optional), then .env, then IDSCAN_* variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	_ = godotenv.Load() // .env is optional

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("IDSCAN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("IDSCAN_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("IDSCAN_OCR_ENGINE"); v != "" {
		c.OCR.Engine = v
	}
	if v := os.Getenv("IDSCAN_OCR_LANGUAGES"); v != "" {
		c.OCR.Languages = strings.Split(v, ",")
	}
	if v := os.Getenv("IDSCAN_OLLAMA_URL"); v != "" {
		c.OCR.OllamaURL = v
	}
	if v := os.Getenv("IDSCAN_OLLAMA_MODEL"); v != "" {
		c.OCR.Model = v
	}
	if v := os.Getenv("IDSCAN_OCR_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing IDSCAN_OCR_TIMEOUT: %w", err)
		}
		c.OCR.Timeout = d
	}
	if v := os.Getenv("IDSCAN_OCR_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing IDSCAN_OCR_POOL_SIZE: %w", err)
		}
		c.OCR.PoolSize = n
	}
	if v := os.Getenv("IDSCAN_IMAGE_PROFILE"); v != "" {
		c.Image.Profile = v
	}
	if v := os.Getenv("IDSCAN_MIN_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing IDSCAN_MIN_CONFIDENCE: %w", err)
		}
		c.Scoring.MinConfidence = f
	}
	return nil
}

// Validate checks ranges that would otherwise break the pipeline at runtime.
func (c *Config) Validate() error {
	if c.OCR.PoolSize < 1 {
		return fmt.Errorf("ocr.pool_size must be >= 1, got %d", c.OCR.PoolSize)
	}
	if c.OCR.Timeout <= 0 {
		return fmt.Errorf("ocr.timeout must be positive, got %s", c.OCR.Timeout)
	}
	switch c.Image.Profile {
	case "ocr", "aggressive":
	default:
		return fmt.Errorf("image.profile must be ocr or aggressive, got %q", c.Image.Profile)
	}
	if c.Image.MaxSkew <= 0 {
		return fmt.Errorf("image.max_skew must be positive, got %v", c.Image.MaxSkew)
	}
	if c.Scoring.MinConfidence < 0 || c.Scoring.MinConfidence > 1 {
		return fmt.Errorf("scoring.min_confidence must be in [0,1], got %v", c.Scoring.MinConfidence)
	}
	for name, r := range map[string]Region{"name": c.Regions.Name, "dates": c.Regions.Dates, "number": c.Regions.Number} {
		if r.X0 < 0 || r.Y0 < 0 || r.X1 > 1 || r.Y1 > 1 || r.X0 >= r.X1 || r.Y0 >= r.Y1 {
			return fmt.Errorf("regions.%s is not a valid fractional rectangle: %+v", name, r)
		}
	}
	return nil
}
