package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	domainerr "blogpipe/internal/domain/errors"
)

type Config struct {
	Site   SiteConfig   `yaml:"site"`
	Build  BuildConfig  `yaml:"build"`
	Serve  ServeConfig  `yaml:"serve"`
	Relate RelateConfig `yaml:"relate"`
	Log    LogConfig    `yaml:"log"`
}

type SiteConfig struct {
	Title       string `yaml:"title"`
	Author      string `yaml:"author"`
	SiteURL     string `yaml:"site_url"`
	Theme       string `yaml:"theme"`
	Language    string `yaml:"language"`
	Description string `yaml:"description"`
}

type BuildConfig struct {
	SourceDir      string    `yaml:"source_dir"`
	PublicDir      string    `yaml:"public_dir"`
	ThemeDir       string    `yaml:"theme_dir"`
	IndexPath      string    `yaml:"index_path"`
	IncludeDraft   bool      `yaml:"include_draft"`
	// LegacyPrefixes are extra path prefixes, besides /blog/, whose links
	// are rewritten to /blogs/<id>.
	LegacyPrefixes []string  `yaml:"legacy_prefixes"`
	Now            time.Time `yaml:"-"`
}

type ServeConfig struct {
	Addr     string        `yaml:"addr"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

type RelateConfig struct {
	Count           int           `yaml:"count"`
	TagWeight       float64       `yaml:"tag_weight"`
	ProximityWeight float64       `yaml:"proximity_weight"`
	ProximityScale  time.Duration `yaml:"proximity_scale"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

func Default() Config {
	return Config{
		Site: SiteConfig{
			Title:    "blogpipe",
			SiteURL:  "http://localhost:8080",
			Theme:    "default",
			Language: "en",
		},
		Build: BuildConfig{
			SourceDir: "blogs",
			PublicDir: "public",
			ThemeDir:  "themes",
			IndexPath: ".blogpipe/index.db",
			Now:       time.Now(),
		},
		Serve: ServeConfig{
			Addr:     ":8080",
			Watch:    true,
			Debounce: 200 * time.Millisecond,
		},
		Relate: RelateConfig{
			Count:           3,
			TagWeight:       1,
			ProximityWeight: 0.5,
			ProximityScale:  30 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func (c Config) Validate() error {
	var ve domainerr.ValidationError

	if strings.TrimSpace(c.Site.Title) == "" {
		ve.Add("site.title", "must not be empty")
	}
	if strings.TrimSpace(c.Site.SiteURL) == "" {
		ve.Add("site.site_url", "must not be empty")
	} else if !isValidAbsURL(c.Site.SiteURL) {
		ve.Add("site.site_url", "must be a valid absolute URL")
	}

	if strings.TrimSpace(c.Build.SourceDir) == "" {
		ve.Add("build.source_dir", "must not be empty")
	}
	if strings.TrimSpace(c.Build.PublicDir) == "" {
		ve.Add("build.public_dir", "must not be empty")
	}
	if strings.TrimSpace(c.Build.IndexPath) == "" {
		ve.Add("build.index_path", "must not be empty")
	}

	for _, p := range c.Build.LegacyPrefixes {
		if !strings.HasPrefix(strings.TrimSpace(p), "/") {
			ve.Add("build.legacy_prefixes", "must be absolute paths")
			break
		}
	}

	if strings.TrimSpace(c.Serve.Addr) == "" {
		ve.Add("serve.addr", "must not be empty")
	}
	if c.Serve.Debounce < 0 {
		ve.Add("serve.debounce", "must not be negative")
	}

	if c.Relate.Count < 0 {
		ve.Add("relate.count", "must not be negative")
	}
	if c.Relate.ProximityWeight < 0 {
		ve.Add("relate.proximity_weight", "must not be negative")
	}
	// tag overlap is the primary signal: one shared tag must beat any proximity
	if c.Relate.TagWeight <= c.Relate.ProximityWeight {
		ve.Add("relate.tag_weight", "must be greater than relate.proximity_weight")
	}
	if c.Relate.ProximityScale <= 0 {
		ve.Add("relate.proximity_scale", "must be positive")
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		ve.Add("log.level", "must be one of debug, info, warn, error")
	}

	if ve.HasAny() {
		return ve
	}
	return nil
}

func isValidAbsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// Load reads path over Default. A missing file is not an error; the defaults
// (plus environment overrides) are validated instead.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		// fields present in the file override defaults, the rest stay
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	ApplyEnv(&cfg)

	if cfg.Build.Now.IsZero() {
		cfg.Build.Now = time.Now()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overrides selected fields from BLOGPIPE_* variables.
func ApplyEnv(cfg *Config) {
	if v, ok := lookup("BLOGPIPE_SOURCE_DIR"); ok {
		cfg.Build.SourceDir = v
	}
	if v, ok := lookup("BLOGPIPE_PUBLIC_DIR"); ok {
		cfg.Build.PublicDir = v
	}
	if v, ok := lookup("BLOGPIPE_INDEX_PATH"); ok {
		cfg.Build.IndexPath = v
	}
	if v, ok := lookup("BLOGPIPE_ADDR"); ok {
		cfg.Serve.Addr = v
	}
	if v, ok := lookup("BLOGPIPE_SITE_URL"); ok {
		cfg.Site.SiteURL = v
	}
	if v, ok := lookup("BLOGPIPE_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookup("BLOGPIPE_INCLUDE_DRAFT"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Build.IncludeDraft = b
		}
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
