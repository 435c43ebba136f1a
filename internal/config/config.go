package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"jdsx/internal/codec"
)

// Publish backends.
const (
	PublishNone     = "none"
	PublishFile     = "file"
	PublishS3       = "s3"
	PublishPostgres = "postgres"
)

// Config is the runtime configuration of the converter and the CLI.
type Config struct {
	TempRoot   string        `toml:"temp_root"`
	DexBackend string        `toml:"dex_backend"`
	MinAPI     int           `toml:"min_api"`
	ToolCache  int           `toml:"tool_cache"`
	Tools      ToolsConfig   `toml:"tools"`
	Publish    PublishConfig `toml:"publish"`
}

// ToolsConfig holds command lines, e.g. "java -jar /opt/fernflower.jar".
// Empty entries fall back to the tool's default name.
type ToolsConfig struct {
	D8         string `toml:"d8"`
	DX         string `toml:"dx"`
	Dex2Jar    string `toml:"dex2jar"`
	Jar2Dex    string `toml:"jar2dex"`
	Baksmali   string `toml:"baksmali"`
	Smali      string `toml:"smali"`
	Javac      string `toml:"javac"`
	Decompiler string `toml:"decompiler"`
}

// PublishConfig selects where -publish stores results. Backend is one of
// none, file, s3 or postgres; only the matching fields are used.
type PublishConfig struct {
	Backend string   `toml:"backend"`
	Dir     string   `toml:"dir"`
	DSN     string   `toml:"dsn"`
	S3      S3Config `toml:"s3"`
}

// S3Config addresses an S3-compatible bucket, e.g. a local MinIO.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DexBackend: codec.BackendD8,
		Publish: PublishConfig{
			Backend: PublishNone,
			Dir:     "jdsx-artifacts",
			S3: S3Config{
				Region: "us-east-1",
				Bucket: "jdsx-artifacts",
				UseSSL: true,
			},
		},
	}
}

// Load builds the configuration from defaults, then the TOML file at path
// (or $JDSX_CONFIG), then the environment. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	path = firstNonEmpty(strings.TrimSpace(path), strings.TrimSpace(os.Getenv("JDSX_CONFIG")))
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.TempRoot = firstNonEmpty(env("JDSX_TEMP_ROOT"), cfg.TempRoot)
	cfg.DexBackend = firstNonEmpty(env("JDSX_DEX_BACKEND"), cfg.DexBackend)

	var err error
	if cfg.MinAPI, err = envInt("JDSX_MIN_API", cfg.MinAPI); err != nil {
		return err
	}
	if cfg.ToolCache, err = envInt("JDSX_TOOL_CACHE", cfg.ToolCache); err != nil {
		return err
	}

	t := &cfg.Tools
	t.D8 = firstNonEmpty(env("JDSX_D8"), t.D8)
	t.DX = firstNonEmpty(env("JDSX_DX"), t.DX)
	t.Dex2Jar = firstNonEmpty(env("JDSX_DEX2JAR"), t.Dex2Jar)
	t.Jar2Dex = firstNonEmpty(env("JDSX_JAR2DEX"), t.Jar2Dex)
	t.Baksmali = firstNonEmpty(env("JDSX_BAKSMALI"), t.Baksmali)
	t.Smali = firstNonEmpty(env("JDSX_SMALI"), t.Smali)
	t.Javac = firstNonEmpty(env("JDSX_JAVAC"), t.Javac)
	t.Decompiler = firstNonEmpty(env("JDSX_DECOMPILER"), t.Decompiler)

	p := &cfg.Publish
	p.Backend = firstNonEmpty(env("JDSX_PUBLISH"), p.Backend)
	p.Dir = firstNonEmpty(env("JDSX_PUBLISH_DIR"), p.Dir)
	p.DSN = firstNonEmpty(env("JDSX_PUBLISH_DSN"), env("DATABASE_URL"), p.DSN)

	s3 := &p.S3
	s3.Endpoint = firstNonEmpty(env("ARTIFACT_S3_ENDPOINT"), s3.Endpoint)
	s3.Region = firstNonEmpty(env("ARTIFACT_S3_REGION"), s3.Region)
	s3.AccessKey = firstNonEmpty(env("ARTIFACT_S3_ACCESS_KEY"), env("MINIO_ROOT_USER"), s3.AccessKey)
	s3.SecretKey = firstNonEmpty(env("ARTIFACT_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD"), s3.SecretKey)
	s3.Bucket = firstNonEmpty(env("ARTIFACT_S3_BUCKET"), s3.Bucket)
	if raw := env("ARTIFACT_S3_USE_SSL"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("ARTIFACT_S3_USE_SSL: %w", err)
		}
		s3.UseSSL = v
	}
	return nil
}

// Validate checks that the selected backends are known and configured.
func (c *Config) Validate() error {
	c.DexBackend = strings.ToLower(strings.TrimSpace(c.DexBackend))
	switch c.DexBackend {
	case "":
		c.DexBackend = codec.BackendD8
	case codec.BackendD8, codec.BackendDX:
	default:
		return fmt.Errorf("dex backend %q is not one of %s, %s", c.DexBackend, codec.BackendD8, codec.BackendDX)
	}
	if c.MinAPI < 0 {
		return fmt.Errorf("min api must not be negative, got %d", c.MinAPI)
	}

	c.Publish.Backend = strings.ToLower(strings.TrimSpace(c.Publish.Backend))
	switch c.Publish.Backend {
	case "", PublishNone:
		c.Publish.Backend = PublishNone
	case PublishFile:
		if strings.TrimSpace(c.Publish.Dir) == "" {
			return fmt.Errorf("file publishing requires a directory")
		}
	case PublishS3:
		if c.Publish.S3.Endpoint == "" || c.Publish.S3.Bucket == "" {
			return fmt.Errorf("s3 publishing requires ARTIFACT_S3_ENDPOINT and ARTIFACT_S3_BUCKET")
		}
	case PublishPostgres:
		if c.Publish.DSN == "" {
			return fmt.Errorf("postgres publishing requires JDSX_PUBLISH_DSN")
		}
	default:
		return fmt.Errorf("publish backend %q is not one of none, file, s3, postgres", c.Publish.Backend)
	}
	return nil
}

// CodecOptions maps the tool settings onto the codec registry options.
func (c *Config) CodecOptions() codec.Options {
	return codec.Options{
		DexBackend: c.DexBackend,
		MinAPI:     c.MinAPI,
		Tools: codec.Tools{
			D8:         codec.SplitCommand(c.Tools.D8),
			DX:         codec.SplitCommand(c.Tools.DX),
			Dex2Jar:    codec.SplitCommand(c.Tools.Dex2Jar),
			Jar2Dex:    codec.SplitCommand(c.Tools.Jar2Dex),
			Baksmali:   codec.SplitCommand(c.Tools.Baksmali),
			Smali:      codec.SplitCommand(c.Tools.Smali),
			Javac:      codec.SplitCommand(c.Tools.Javac),
			Decompiler: codec.SplitCommand(c.Tools.Decompiler),
		},
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string, def int) (int, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
