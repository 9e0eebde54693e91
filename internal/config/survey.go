package config

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/sonar.survey/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical survey defaults file.
const DefaultConfigPath = "config/survey.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Defaults applied by the Get* accessors when a field is unset.
const (
	DefaultStartTime          = "0"
	DefaultSonarPath          = "sonar.txt"
	DefaultSonarSampleFreq    = 78125
	DefaultGNSSPath           = "gnss.txt"
	DefaultGNSSFrequency      = 50
	DefaultSpeedOfSoundPath   = "speed_of_sound.txt"
	DefaultSpeedOfSoundFreq   = 1
	DefaultGeolocationWorkers = 1
	DefaultHaltOnInvalidRange = true
	DefaultFallbackToNearest  = false
)

// DefaultGNSSHeaders is the GNSS column order of the survey logger.
var DefaultGNSSHeaders = []string{"roll", "pitch", "heading", "latitude", "longitude", "altitude", "heave"}

// DefaultSpeedOfSoundHeaders is the single speed of sound column.
var DefaultSpeedOfSoundHeaders = []string{"speed"}

// SurveyConfig is the root configuration of a survey run. Pointer fields
// distinguish "unset" from zero values so partial files are safe.
type SurveyConfig struct {
	StartTime    *string            `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	Sonar        *SonarConfig       `json:"sonar,omitempty" yaml:"sonar,omitempty"`
	GNSS         *StreamConfig      `json:"gnss,omitempty" yaml:"gnss,omitempty"`
	SpeedOfSound *StreamConfig      `json:"speed_of_sound,omitempty" yaml:"speed_of_sound,omitempty"`
	Fusion       *FusionConfig      `json:"fusion,omitempty" yaml:"fusion,omitempty"`
	Geolocation  *GeolocationConfig `json:"geolocation,omitempty" yaml:"geolocation,omitempty"`
	Output       *OutputConfig      `json:"output,omitempty" yaml:"output,omitempty"`
}

// SonarConfig locates the sonar log.
type SonarConfig struct {
	Path            *string  `json:"path,omitempty" yaml:"path,omitempty"`
	SampleFrequency *float64 `json:"sample_frequency,omitempty" yaml:"sample_frequency,omitempty"`
}

// StreamConfig describes a fixed-rate auxiliary log.
type StreamConfig struct {
	Path      *string  `json:"path,omitempty" yaml:"path,omitempty"`
	Frequency *float64 `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Headers   []string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// FusionConfig tunes temporal fusion.
type FusionConfig struct {
	FallbackToNearest *bool `json:"fallback_to_nearest,omitempty" yaml:"fallback_to_nearest,omitempty"`
}

// GeolocationConfig tunes the geolocation stage.
type GeolocationConfig struct {
	Workers            *int  `json:"workers,omitempty" yaml:"workers,omitempty"`
	HaltOnInvalidRange *bool `json:"halt_on_invalid_range,omitempty" yaml:"halt_on_invalid_range,omitempty"`
}

// OutputConfig enables optional sinks. Empty paths disable them.
type OutputConfig struct {
	DBPath  *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	ASCPath *string `json:"asc_path,omitempty" yaml:"asc_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySurveyConfig returns a SurveyConfig with all fields unset.
func EmptySurveyConfig() *SurveyConfig {
	return &SurveyConfig{}
}

// DefaultSurveyConfig returns a config with every field populated from the
// built-in defaults.
func DefaultSurveyConfig() *SurveyConfig {
	return &SurveyConfig{
		StartTime: ptrString(DefaultStartTime),
		Sonar: &SonarConfig{
			Path:            ptrString(DefaultSonarPath),
			SampleFrequency: ptrFloat64(DefaultSonarSampleFreq),
		},
		GNSS: &StreamConfig{
			Path:      ptrString(DefaultGNSSPath),
			Frequency: ptrFloat64(DefaultGNSSFrequency),
			Headers:   append([]string(nil), DefaultGNSSHeaders...),
		},
		SpeedOfSound: &StreamConfig{
			Path:      ptrString(DefaultSpeedOfSoundPath),
			Frequency: ptrFloat64(DefaultSpeedOfSoundFreq),
			Headers:   append([]string(nil), DefaultSpeedOfSoundHeaders...),
		},
		Fusion: &FusionConfig{FallbackToNearest: ptrBool(DefaultFallbackToNearest)},
		Geolocation: &GeolocationConfig{
			Workers:            ptrInt(DefaultGeolocationWorkers),
			HaltOnInvalidRange: ptrBool(DefaultHaltOnInvalidRange),
		},
		Output: &OutputConfig{DBPath: ptrString(""), ASCPath: ptrString("")},
	}
}

// LoadSurveyConfig loads a SurveyConfig from a .json, .yaml or .yml file.
// The file must be under 1MB. Omitted fields fall back to defaults through
// the Get* accessors.
func LoadSurveyConfig(path string) (*SurveyConfig, error) {
	return LoadSurveyConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadSurveyConfigFS is LoadSurveyConfig reading through fsys.
func LoadSurveyConfigFS(fsys fsutil.FileSystem, path string) (*SurveyConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySurveyConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching parent directories. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *SurveyConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/survey/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSurveyConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *SurveyConfig) Validate() error {
	if c.StartTime != nil {
		if _, err := decimal.NewFromString(*c.StartTime); err != nil {
			return fmt.Errorf("invalid start_time %q: %w", *c.StartTime, err)
		}
	}

	if c.Sonar != nil && c.Sonar.SampleFrequency != nil && !positiveFinite(*c.Sonar.SampleFrequency) {
		return fmt.Errorf("sonar.sample_frequency must be positive and finite, got %f", *c.Sonar.SampleFrequency)
	}

	for name, s := range map[string]*StreamConfig{"gnss": c.GNSS, "speed_of_sound": c.SpeedOfSound} {
		if s == nil {
			continue
		}
		if s.Frequency != nil && !positiveFinite(*s.Frequency) {
			return fmt.Errorf("%s.frequency must be positive and finite, got %f", name, *s.Frequency)
		}
		seen := make(map[string]bool, len(s.Headers))
		for _, h := range s.Headers {
			if h == "" {
				return fmt.Errorf("%s.headers contains an empty name", name)
			}
			if seen[h] {
				return fmt.Errorf("%s.headers repeats %q", name, h)
			}
			seen[h] = true
		}
	}

	if c.Geolocation != nil && c.Geolocation.Workers != nil && *c.Geolocation.Workers < 1 {
		return fmt.Errorf("geolocation.workers must be at least 1, got %d", *c.Geolocation.Workers)
	}

	return nil
}

// positiveFinite rejects NaN and infinities, which YAML accepts as .nan and
// .inf and which decimal.NewFromFloat cannot represent.
func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// GetStartTime returns the start time as a decimal, or zero.
func (c *SurveyConfig) GetStartTime() decimal.Decimal {
	if c.StartTime == nil || *c.StartTime == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(*c.StartTime)
	if err != nil {
		return decimal.Zero // default on parse error
	}
	return v
}

// GetSonarPath returns the sonar log path or the default.
func (c *SurveyConfig) GetSonarPath() string {
	if c.Sonar == nil || c.Sonar.Path == nil {
		return DefaultSonarPath
	}
	return *c.Sonar.Path
}

// GetSonarSampleFrequency returns the sonar sample frequency in Hz.
func (c *SurveyConfig) GetSonarSampleFrequency() decimal.Decimal {
	if c.Sonar == nil || c.Sonar.SampleFrequency == nil {
		return decimal.NewFromInt(DefaultSonarSampleFreq)
	}
	return decimal.NewFromFloat(*c.Sonar.SampleFrequency)
}

// GetGNSSPath returns the GNSS log path or the default.
func (c *SurveyConfig) GetGNSSPath() string {
	if c.GNSS == nil || c.GNSS.Path == nil {
		return DefaultGNSSPath
	}
	return *c.GNSS.Path
}

// GetGNSSFrequency returns the GNSS sampling rate in Hz.
func (c *SurveyConfig) GetGNSSFrequency() decimal.Decimal {
	if c.GNSS == nil || c.GNSS.Frequency == nil {
		return decimal.NewFromInt(DefaultGNSSFrequency)
	}
	return decimal.NewFromFloat(*c.GNSS.Frequency)
}

// GetGNSSHeaders returns the GNSS column names.
func (c *SurveyConfig) GetGNSSHeaders() []string {
	if c.GNSS == nil || len(c.GNSS.Headers) == 0 {
		return append([]string(nil), DefaultGNSSHeaders...)
	}
	return c.GNSS.Headers
}

// GetSpeedOfSoundPath returns the speed of sound log path or the default.
func (c *SurveyConfig) GetSpeedOfSoundPath() string {
	if c.SpeedOfSound == nil || c.SpeedOfSound.Path == nil {
		return DefaultSpeedOfSoundPath
	}
	return *c.SpeedOfSound.Path
}

// GetSpeedOfSoundFrequency returns the speed of sound sampling rate in Hz.
func (c *SurveyConfig) GetSpeedOfSoundFrequency() decimal.Decimal {
	if c.SpeedOfSound == nil || c.SpeedOfSound.Frequency == nil {
		return decimal.NewFromInt(DefaultSpeedOfSoundFreq)
	}
	return decimal.NewFromFloat(*c.SpeedOfSound.Frequency)
}

// GetSpeedOfSoundHeaders returns the speed of sound column names.
func (c *SurveyConfig) GetSpeedOfSoundHeaders() []string {
	if c.SpeedOfSound == nil || len(c.SpeedOfSound.Headers) == 0 {
		return append([]string(nil), DefaultSpeedOfSoundHeaders...)
	}
	return c.SpeedOfSound.Headers
}

// GetFallbackToNearest reports whether out-of-range fusion indices fall back
// to a nearest-time scan.
func (c *SurveyConfig) GetFallbackToNearest() bool {
	if c.Fusion == nil || c.Fusion.FallbackToNearest == nil {
		return DefaultFallbackToNearest
	}
	return *c.Fusion.FallbackToNearest
}

// GetGeolocationWorkers returns the number of geolocation workers.
func (c *SurveyConfig) GetGeolocationWorkers() int {
	if c.Geolocation == nil || c.Geolocation.Workers == nil {
		return DefaultGeolocationWorkers
	}
	return *c.Geolocation.Workers
}

// GetHaltOnInvalidRange returns the halt_on_invalid_range value or the default.
func (c *SurveyConfig) GetHaltOnInvalidRange() bool {
	if c.Geolocation == nil || c.Geolocation.HaltOnInvalidRange == nil {
		return DefaultHaltOnInvalidRange
	}
	return *c.Geolocation.HaltOnInvalidRange
}

// GetDBPath returns the sqlite output path; empty disables the store.
func (c *SurveyConfig) GetDBPath() string {
	if c.Output == nil || c.Output.DBPath == nil {
		return ""
	}
	return *c.Output.DBPath
}

// GetASCPath returns the ASC export path; empty disables the export.
func (c *SurveyConfig) GetASCPath() string {
	if c.Output == nil || c.Output.ASCPath == nil {
		return ""
	}
	return *c.Output.ASCPath
}

// SetDBPath overrides the sqlite output path.
func (c *SurveyConfig) SetDBPath(path string) {
	if c.Output == nil {
		c.Output = &OutputConfig{}
	}
	c.Output.DBPath = ptrString(path)
}

// SetASCPath overrides the ASC export path.
func (c *SurveyConfig) SetASCPath(path string) {
	if c.Output == nil {
		c.Output = &OutputConfig{}
	}
	c.Output.ASCPath = ptrString(path)
}

// SetStartTime overrides the start time.
func (c *SurveyConfig) SetStartTime(start string) {
	c.StartTime = ptrString(start)
}

// SetWorkers overrides the geolocation worker count.
func (c *SurveyConfig) SetWorkers(n int) {
	if c.Geolocation == nil {
		c.Geolocation = &GeolocationConfig{}
	}
	c.Geolocation.Workers = ptrInt(n)
}
