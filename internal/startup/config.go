package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"media-catalog/internal/catalog"
	"media-catalog/internal/indexer"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
)

// ConfigFileEnv names the environment variable holding the TOML file path.
const ConfigFileEnv = "CATALOG_CONFIG"

// Config holds all application configuration
type Config struct {
	DataDir          string `toml:"data_dir"`
	TablesFolderName string `toml:"tables_folder_name"`
	BlobsFolderName  string `toml:"blobs_folder_name"`
	Separator        string `toml:"separator"`

	Roots              []string      `toml:"roots"`
	ExemptedFolderPath string        `toml:"exempted_folder_path"`
	BatchSize          int           `toml:"batch_size"`
	Cooldown           time.Duration `toml:"cooldown"`
	BackupsToKeep      int           `toml:"backups_to_keep"`

	ThumbnailMaxWidth  int  `toml:"thumbnail_max_width"`
	ThumbnailMaxHeight int  `toml:"thumbnail_max_height"`
	SkipThumbnails     bool `toml:"skip_thumbnails"`
	UsePHash           bool `toml:"use_phash"`
	UseDHash           bool `toml:"use_dhash"`
	UseMD5             bool `toml:"use_md5"`
	AnalyseVideos      bool `toml:"analyse_videos"`

	ThumbnailCacheSize  int `toml:"thumbnail_cache_size"`
	RecentPathsMax      int `toml:"recent_paths_max"`
	SimilarityThreshold int `toml:"similarity_threshold"`

	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`

	Port            string `toml:"port"`
	LogLevel        string `toml:"log_level"`
	LogHealthChecks bool   `toml:"log_health_checks"`

	// SyncDefinitions seed the stored sync definitions when none exist yet.
	SyncDefinitions []catalog.SyncAssetsDirectoriesDefinition `toml:"sync"`

	// ConfigFile is the TOML file the configuration was read from, if any.
	ConfigFile string `toml:"-"`
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s=%q: %s", e.Field, e.Value, e.Reason)
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:             "./data",
		TablesFolderName:    "Tables",
		BlobsFolderName:     "Blobs",
		Separator:           "|",
		BatchSize:           100,
		Cooldown:            2 * time.Minute,
		BackupsToKeep:       2,
		ThumbnailMaxWidth:   200,
		ThumbnailMaxHeight:  150,
		AnalyseVideos:       true,
		ThumbnailCacheSize:  16,
		RecentPathsMax:      20,
		SimilarityThreshold: 4,
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		Port:                "8080",
		LogLevel:            "info",
		LogHealthChecks:     true,
	}
}

// Load builds the configuration from, later sources winning: the defaults,
// the TOML file named by CATALOG_CONFIG, envFile (skipped when missing) and
// the process environment. The result is validated.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := DefaultConfig()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		logging.Warn("Unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	c.ConfigFile = path
	return nil
}

func (c *Config) applyEnv() error {
	c.DataDir = getEnv("CATALOG_DATA_DIR", c.DataDir)
	c.TablesFolderName = getEnv("CATALOG_TABLES_FOLDER", c.TablesFolderName)
	c.BlobsFolderName = getEnv("CATALOG_BLOBS_FOLDER", c.BlobsFolderName)
	c.Separator = getEnv("CATALOG_SEPARATOR", c.Separator)
	if roots := os.Getenv("CATALOG_ROOTS"); roots != "" {
		c.Roots = filepath.SplitList(roots)
	}
	c.ExemptedFolderPath = getEnv("CATALOG_EXEMPTED_FOLDER", c.ExemptedFolderPath)
	c.FFmpegPath = getEnv("CATALOG_FFMPEG_PATH", c.FFmpegPath)
	c.FFprobePath = getEnv("CATALOG_FFPROBE_PATH", c.FFprobePath)
	c.Port = getEnv("CATALOG_PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	var err error
	ints := []struct {
		key string
		dst *int
	}{
		{"CATALOG_BATCH_SIZE", &c.BatchSize},
		{"CATALOG_BACKUPS_TO_KEEP", &c.BackupsToKeep},
		{"CATALOG_THUMBNAIL_MAX_WIDTH", &c.ThumbnailMaxWidth},
		{"CATALOG_THUMBNAIL_MAX_HEIGHT", &c.ThumbnailMaxHeight},
		{"CATALOG_THUMBNAIL_CACHE_SIZE", &c.ThumbnailCacheSize},
		{"CATALOG_RECENT_PATHS_MAX", &c.RecentPathsMax},
		{"CATALOG_SIMILARITY_THRESHOLD", &c.SimilarityThreshold},
	}
	for _, v := range ints {
		if *v.dst, err = getEnvInt(v.key, *v.dst); err != nil {
			return err
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"CATALOG_SKIP_THUMBNAILS", &c.SkipThumbnails},
		{"CATALOG_USE_PHASH", &c.UsePHash},
		{"CATALOG_USE_DHASH", &c.UseDHash},
		{"CATALOG_USE_MD5", &c.UseMD5},
		{"CATALOG_ANALYSE_VIDEOS", &c.AnalyseVideos},
		{"LOG_HEALTH_CHECKS", &c.LogHealthChecks},
	}
	for _, v := range bools {
		if *v.dst, err = getEnvBool(v.key, *v.dst); err != nil {
			return err
		}
	}

	c.Cooldown, err = getEnvDuration("CATALOG_COOLDOWN", c.Cooldown)
	return err
}

// Validate checks every setting. Failures are *ConfigError.
func (c *Config) Validate() error {
	invalid := func(field string, value any, reason string) error {
		return &ConfigError{Field: field, Value: fmt.Sprint(value), Reason: reason}
	}

	switch {
	case strings.TrimSpace(c.DataDir) == "":
		return invalid("data_dir", c.DataDir, "must not be empty")
	case strings.TrimSpace(c.TablesFolderName) == "":
		return invalid("tables_folder_name", c.TablesFolderName, "must not be empty")
	case strings.TrimSpace(c.BlobsFolderName) == "":
		return invalid("blobs_folder_name", c.BlobsFolderName, "must not be empty")
	case strings.EqualFold(c.TablesFolderName, c.BlobsFolderName):
		return invalid("blobs_folder_name", c.BlobsFolderName, "must differ from tables_folder_name")
	case utf8.RuneCountInString(c.Separator) != 1:
		return invalid("separator", c.Separator, "must be a single character")
	case strings.ContainsAny(c.Separator, "\"\r\n"):
		return invalid("separator", c.Separator, "must not be a quote or a line break")
	case c.BatchSize <= 0:
		return invalid("batch_size", c.BatchSize, "must be positive")
	case c.Cooldown <= 0:
		return invalid("cooldown", c.Cooldown, "must be positive")
	case c.BackupsToKeep <= 0:
		return invalid("backups_to_keep", c.BackupsToKeep, "must be positive")
	case !c.SkipThumbnails && (c.ThumbnailMaxWidth <= 0 || c.ThumbnailMaxHeight <= 0):
		return invalid("thumbnail_max_width", fmt.Sprintf("%dx%d", c.ThumbnailMaxWidth, c.ThumbnailMaxHeight), "must be positive")
	case c.ThumbnailCacheSize <= 0:
		return invalid("thumbnail_cache_size", c.ThumbnailCacheSize, "must be positive")
	case c.RecentPathsMax <= 0:
		return invalid("recent_paths_max", c.RecentPathsMax, "must be positive")
	case c.SimilarityThreshold < 0 || c.SimilarityThreshold > 16:
		return invalid("similarity_threshold", c.SimilarityThreshold, "must be between 0 and 16")
	case strings.TrimSpace(c.Port) == "":
		return invalid("port", c.Port, "must not be empty")
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return invalid("log_level", c.LogLevel, "must be one of debug, info, warn, error")
	}
	for i, def := range c.SyncDefinitions {
		if def.SourceDirectory == "" || def.DestinationDirectory == "" {
			return invalid(fmt.Sprintf("sync[%d]", i), def.SourceDirectory+" -> "+def.DestinationDirectory,
				"source and destination are required")
		}
	}
	return nil
}

// SeparatorRune returns the table field separator.
func (c *Config) SeparatorRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Separator)
	return r
}

// RepositoryOptions returns the catalog repository settings.
func (c *Config) RepositoryOptions() catalog.Options {
	return catalog.Options{
		ThumbnailCacheSize: c.ThumbnailCacheSize,
		RecentPathsMax:     c.RecentPathsMax,
	}
}

// BuilderOptions returns the asset builder settings.
func (c *Config) BuilderOptions() media.BuilderOptions {
	return media.BuilderOptions{
		ThumbnailMaxWidth:  c.ThumbnailMaxWidth,
		ThumbnailMaxHeight: c.ThumbnailMaxHeight,
		SkipThumbnails:     c.SkipThumbnails,
		UsePHash:           c.UsePHash,
		UseDHash:           c.UseDHash,
		UseMD5:             c.UseMD5,
		AnalyseVideos:      c.AnalyseVideos,
	}
}

// IndexerOptions returns the catalog pass settings.
func (c *Config) IndexerOptions() indexer.Options {
	return indexer.Options{
		Roots:              c.Roots,
		ExemptedFolderPath: c.ExemptedFolderPath,
		BatchSize:          c.BatchSize,
		BackupsToKeep:      c.BackupsToKeep,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, &ConfigError{Field: key, Value: value, Reason: "must be a boolean"}
	}
	return parsed, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, &ConfigError{Field: key, Value: value, Reason: "must be an integer"}
	}
	return parsed, nil
}

// getEnvDuration accepts Go durations ("90s", "2m") or a bare number of
// minutes.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, &ConfigError{Field: key, Value: value, Reason: "must be a duration"}
	}
	return parsed, nil
}
