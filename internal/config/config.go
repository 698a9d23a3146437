package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const DateLayout = "2006-01-02"

var (
	ErrMissingKey  = errors.New("missing required config keys")
	ErrInvalidDate = errors.New("invalid date")
)

// ValidationError lists the config keys that failed a check.
type ValidationError struct {
	Keys []string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, strings.Join(e.Keys, ", "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type Local struct {
	Path string `json:"path" yaml:"path"`
}

type S3 struct {
	Bucket         string `json:"bucket" yaml:"bucket"`
	Region         string `json:"region" yaml:"region"`
	Prefix         string `json:"prefix" yaml:"prefix"`
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	ForcePathStyle bool   `json:"force_path_style" yaml:"force_path_style"`
}

type Archive struct {
	Type   string `json:"type" yaml:"type"`
	Format string `json:"format" yaml:"format"`
	Local  Local  `json:"local" yaml:"local"`
	S3     S3     `json:"s3" yaml:"s3"`
}

// Enabled reports whether a sync run should be archived.
func (a Archive) Enabled() bool {
	return a.Type != "" && a.Type != "none"
}

type Config struct {
	APIKey          string `json:"api_key" yaml:"api_key"`
	StartDate       string `json:"start_date" yaml:"start_date"`
	SeriesID        string `json:"series_id" yaml:"series_id"`
	SeriesStartDate string `json:"series_start_date" yaml:"series_start_date"`
	SeriesEndDate   string `json:"series_end_date" yaml:"series_end_date"`

	BaseURL   string  `json:"base_url" yaml:"base_url"`
	UserAgent string  `json:"user_agent" yaml:"user_agent"`
	Archive   Archive `json:"archive" yaml:"archive"`
}

// NewFromFile reads a JSON or YAML config file. ${VAR} references in string
// values are replaced with environment values after decoding.
func NewFromFile(fpath string) (*Config, error) {
	bs, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}

	var c Config
	switch strings.ToLower(filepath.Ext(fpath)) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(bs, &c); err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", fpath, err)
		}
	default:
		if err := json.Unmarshal(bs, &c); err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", fpath, err)
		}
	}

	for _, field := range c.stringFields() {
		*field = substituteEnvVars(*field)
	}
	return &c, nil
}

func (c *Config) stringFields() []*string {
	return []*string{
		&c.APIKey,
		&c.StartDate,
		&c.SeriesID,
		&c.SeriesStartDate,
		&c.SeriesEndDate,
		&c.BaseURL,
		&c.UserAgent,
		&c.Archive.Type,
		&c.Archive.Format,
		&c.Archive.Local.Path,
		&c.Archive.S3.Bucket,
		&c.Archive.S3.Region,
		&c.Archive.S3.Prefix,
		&c.Archive.S3.Endpoint,
	}
}

// ApplyOverrides replaces file values with any value set in v, which is
// expected to carry environment and flag bindings.
func (c *Config) ApplyOverrides(v *viper.Viper) {
	overrides := map[string]*string{
		"api_key":           &c.APIKey,
		"start_date":        &c.StartDate,
		"series_id":         &c.SeriesID,
		"series_start_date": &c.SeriesStartDate,
		"series_end_date":   &c.SeriesEndDate,
		"base_url":          &c.BaseURL,
		"user_agent":        &c.UserAgent,
		"archive.type":      &c.Archive.Type,
		"archive.format":    &c.Archive.Format,
	}

	for key, dst := range overrides {
		if v.IsSet(key) && v.GetString(key) != "" {
			*dst = v.GetString(key)
		}
	}
}

// Validate checks the keys every mode needs. It runs before any network
// call.
func (c *Config) Validate() error {
	if err := requireKeys(map[string]string{
		"api_key":    c.APIKey,
		"start_date": c.StartDate,
	}); err != nil {
		return err
	}
	// start_date is never sent upstream and may be an RFC3339 timestamp
	if !isDate(c.StartDate) && !isTimestamp(c.StartDate) {
		return &ValidationError{Keys: []string{"start_date"}, Err: ErrInvalidDate}
	}
	return nil
}

// ValidateSync checks the keys sync mode needs on top of Validate.
func (c *Config) ValidateSync() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := requireKeys(map[string]string{
		"series_id":         c.SeriesID,
		"series_start_date": c.SeriesStartDate,
		"series_end_date":   c.SeriesEndDate,
	}); err != nil {
		return err
	}
	return checkDates(map[string]string{
		"series_start_date": c.SeriesStartDate,
		"series_end_date":   c.SeriesEndDate,
	})
}

func requireKeys(values map[string]string) error {
	var missing []string
	for key, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &ValidationError{Keys: missing, Err: ErrMissingKey}
}

func checkDates(values map[string]string) error {
	var invalid []string
	for key, value := range values {
		if !isDate(value) {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)
	return &ValidationError{Keys: invalid, Err: ErrInvalidDate}
}

func isDate(value string) bool {
	_, err := time.Parse(DateLayout, value)
	return err == nil
}

func isTimestamp(value string) bool {
	_, err := time.Parse(time.RFC3339, value)
	return err == nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Substituted values are not expanded again. An unterminated reference is
// left as is.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
