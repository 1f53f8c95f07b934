// Package config defines the engine's run configuration: an immutable Config
// built through a fluent With* builder and validated by Build.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the recognized run options.
type Config struct {
	seedURL     string
	applicationID string

	maxCrawlDepth      int
	maxPagesToCrawl    int
	maxLinksToValidate int

	extractStatic   bool
	extractDynamic  bool
	extractResource bool
	extractExternal bool

	requestTimeout        time.Duration
	maxConcurrentRequests int
	retryAttempts         int
	userAgent             string

	validatorConcurrency int
	wallClockCeiling     time.Duration
}

// configDTO is the wire shape for JSON/TOML configuration files. Fields use
// the zero value to mean "not set, keep default".
type configDTO struct {
	SeedURL       string `json:"seedUrl" toml:"seed_url"`
	ApplicationID string `json:"applicationId" toml:"application_id"`

	MaxCrawlDepth      int `json:"maxCrawlDepth" toml:"max_crawl_depth"`
	MaxPagesToCrawl    int `json:"maxPagesToCrawl" toml:"max_pages_to_crawl"`
	MaxLinksToValidate int `json:"maxLinksToValidate" toml:"max_links_to_validate"`

	ExtractStatic   *bool `json:"extractStatic,omitempty" toml:"extract_static,omitempty"`
	ExtractDynamic  *bool `json:"extractDynamic,omitempty" toml:"extract_dynamic,omitempty"`
	ExtractResource *bool `json:"extractResource,omitempty" toml:"extract_resource,omitempty"`
	ExtractExternal *bool `json:"extractExternal,omitempty" toml:"extract_external,omitempty"`

	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds" toml:"request_timeout_seconds"`
	MaxConcurrentRequests int    `json:"maxConcurrentRequests" toml:"max_concurrent_requests"`
	RetryAttempts         int    `json:"retryAttempts" toml:"retry_attempts"`
	UserAgent             string `json:"userAgent" toml:"user_agent"`

	ValidatorConcurrency   int `json:"validatorConcurrency" toml:"validator_concurrency"`
	WallClockCeilingSeconds int `json:"wallClockCeilingSeconds" toml:"wall_clock_ceiling_seconds"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	if dto.SeedURL == "" {
		return Config{}, fmt.Errorf("%w: seedUrl cannot be empty", ErrInvalidConfig)
	}

	cfg := WithDefault(dto.SeedURL)
	if dto.ApplicationID != "" {
		cfg.WithApplicationID(dto.ApplicationID)
	}
	if dto.MaxCrawlDepth != 0 {
		cfg.WithMaxCrawlDepth(dto.MaxCrawlDepth)
	}
	if dto.MaxPagesToCrawl != 0 {
		cfg.WithMaxPagesToCrawl(dto.MaxPagesToCrawl)
	}
	if dto.MaxLinksToValidate != 0 {
		cfg.WithMaxLinksToValidate(dto.MaxLinksToValidate)
	}
	if dto.ExtractStatic != nil {
		cfg.WithExtractStatic(*dto.ExtractStatic)
	}
	if dto.ExtractDynamic != nil {
		cfg.WithExtractDynamic(*dto.ExtractDynamic)
	}
	if dto.ExtractResource != nil {
		cfg.WithExtractResource(*dto.ExtractResource)
	}
	if dto.ExtractExternal != nil {
		cfg.WithExtractExternal(*dto.ExtractExternal)
	}
	if dto.RequestTimeoutSeconds != 0 {
		cfg.WithRequestTimeout(time.Duration(dto.RequestTimeoutSeconds) * time.Second)
	}
	if dto.MaxConcurrentRequests != 0 {
		cfg.WithMaxConcurrentRequests(dto.MaxConcurrentRequests)
	}
	if dto.RetryAttempts != 0 {
		cfg.WithRetryAttempts(dto.RetryAttempts)
	}
	if dto.UserAgent != "" {
		cfg.WithUserAgent(dto.UserAgent)
	}
	if dto.ValidatorConcurrency != 0 {
		cfg.WithValidatorConcurrency(dto.ValidatorConcurrency)
	}
	if dto.WallClockCeilingSeconds != 0 {
		cfg.WithWallClockCeiling(time.Duration(dto.WallClockCeilingSeconds) * time.Second)
	}

	return cfg.Build()
}

// WithConfigFile loads a JSON configuration file.
func WithConfigFile(path string) (Config, error) {
	content, err := readConfigFile(path)
	if err != nil {
		return Config{}, err
	}
	var dto configDTO
	if err := json.Unmarshal(content, &dto); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}
	return newConfigFromDTO(dto)
}

// WithConfigFileTOML loads a TOML configuration file.
func WithConfigFileTOML(path string) (Config, error) {
	content, err := readConfigFile(path)
	if err != nil {
		return Config{}, err
	}
	var dto configDTO
	if _, err := toml.Decode(string(content), &dto); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}
	return newConfigFromDTO(dto)
}

func readConfigFile(path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	return content, nil
}

// WithDefault creates a new builder seeded with the given seed URL and
// default values for every other option.
func WithDefault(seedURL string) *Config {
	return &Config{
		seedURL:               seedURL,
		applicationID:         "",
		maxCrawlDepth:         3,
		maxPagesToCrawl:       100,
		maxLinksToValidate:    250,
		extractStatic:         true,
		extractDynamic:        false,
		extractResource:       false,
		extractExternal:       false,
		requestTimeout:        10 * time.Second,
		maxConcurrentRequests: 10,
		retryAttempts:         3,
		userAgent:             "webanalyzer/1.0",
		validatorConcurrency:  50,
		wallClockCeiling:      10 * time.Minute,
	}
}

func (c *Config) WithSeedURL(seedURL string) *Config {
	c.seedURL = seedURL
	return c
}

func (c *Config) WithApplicationID(id string) *Config {
	c.applicationID = id
	return c
}

func (c *Config) WithMaxCrawlDepth(depth int) *Config {
	c.maxCrawlDepth = depth
	return c
}

func (c *Config) WithMaxPagesToCrawl(pages int) *Config {
	c.maxPagesToCrawl = pages
	return c
}

func (c *Config) WithMaxLinksToValidate(links int) *Config {
	c.maxLinksToValidate = links
	return c
}

func (c *Config) WithExtractStatic(v bool) *Config {
	c.extractStatic = v
	return c
}

func (c *Config) WithExtractDynamic(v bool) *Config {
	c.extractDynamic = v
	return c
}

func (c *Config) WithExtractResource(v bool) *Config {
	c.extractResource = v
	return c
}

func (c *Config) WithExtractExternal(v bool) *Config {
	c.extractExternal = v
	return c
}

func (c *Config) WithRequestTimeout(d time.Duration) *Config {
	c.requestTimeout = d
	return c
}

func (c *Config) WithMaxConcurrentRequests(n int) *Config {
	c.maxConcurrentRequests = n
	return c
}

func (c *Config) WithRetryAttempts(n int) *Config {
	c.retryAttempts = n
	return c
}

func (c *Config) WithUserAgent(ua string) *Config {
	c.userAgent = ua
	return c
}

func (c *Config) WithValidatorConcurrency(n int) *Config {
	c.validatorConcurrency = n
	return c
}

func (c *Config) WithWallClockCeiling(d time.Duration) *Config {
	c.wallClockCeiling = d
	return c
}

// Build validates the accumulated options and returns the immutable Config.
func (c *Config) Build() (Config, error) {
	if c.seedURL == "" {
		return Config{}, fmt.Errorf("%w: seedUrl cannot be empty", ErrInvalidConfig)
	}
	if c.maxCrawlDepth < 1 || c.maxCrawlDepth > 5 {
		return Config{}, fmt.Errorf("%w: maxCrawlDepth must be in [1,5], got %d", ErrInvalidConfig, c.maxCrawlDepth)
	}
	if c.maxPagesToCrawl < 10 || c.maxPagesToCrawl > 1000 {
		return Config{}, fmt.Errorf("%w: maxPagesToCrawl must be in [10,1000], got %d", ErrInvalidConfig, c.maxPagesToCrawl)
	}
	if c.maxLinksToValidate < 10 || c.maxLinksToValidate > 2000 {
		return Config{}, fmt.Errorf("%w: maxLinksToValidate must be in [10,2000], got %d", ErrInvalidConfig, c.maxLinksToValidate)
	}
	if c.maxLinksToValidate < 2*c.maxPagesToCrawl {
		return Config{}, fmt.Errorf("%w: maxLinksToValidate (%d) must be >= 2x maxPagesToCrawl (%d)", ErrInvalidConfig, c.maxLinksToValidate, c.maxPagesToCrawl)
	}
	if c.requestTimeout <= 0 {
		return Config{}, fmt.Errorf("%w: requestTimeout must be positive", ErrInvalidConfig)
	}
	if c.maxConcurrentRequests <= 0 {
		return Config{}, fmt.Errorf("%w: maxConcurrentRequests must be positive", ErrInvalidConfig)
	}
	if c.retryAttempts < 0 {
		return Config{}, fmt.Errorf("%w: retryAttempts cannot be negative", ErrInvalidConfig)
	}
	if c.userAgent == "" {
		return Config{}, fmt.Errorf("%w: userAgent cannot be empty", ErrInvalidConfig)
	}
	if c.validatorConcurrency <= 0 {
		return Config{}, fmt.Errorf("%w: validatorConcurrency must be positive", ErrInvalidConfig)
	}
	return *c, nil
}

func (c Config) SeedURL() string                { return c.seedURL }
func (c Config) ApplicationID() string          { return c.applicationID }
func (c Config) MaxCrawlDepth() int             { return c.maxCrawlDepth }
func (c Config) MaxPagesToCrawl() int           { return c.maxPagesToCrawl }
func (c Config) MaxLinksToValidate() int        { return c.maxLinksToValidate }
func (c Config) ExtractStatic() bool            { return c.extractStatic }
func (c Config) ExtractDynamic() bool           { return c.extractDynamic }
func (c Config) ExtractResource() bool          { return c.extractResource }
func (c Config) ExtractExternal() bool          { return c.extractExternal }
func (c Config) RequestTimeout() time.Duration  { return c.requestTimeout }
func (c Config) MaxConcurrentRequests() int     { return c.maxConcurrentRequests }
func (c Config) RetryAttempts() int             { return c.retryAttempts }
func (c Config) UserAgent() string              { return c.userAgent }
func (c Config) ValidatorConcurrency() int      { return c.validatorConcurrency }
func (c Config) WallClockCeiling() time.Duration { return c.wallClockCeiling }
