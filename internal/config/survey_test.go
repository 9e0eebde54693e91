package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonar.survey/internal/fsutil"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEmptySurveyConfig_Getters(t *testing.T) {
	cfg := EmptySurveyConfig()

	assert.True(t, cfg.GetStartTime().IsZero())
	assert.Equal(t, "sonar.txt", cfg.GetSonarPath())
	assert.True(t, cfg.GetSonarSampleFrequency().Equal(decimal.NewFromInt(78125)))
	assert.Equal(t, "gnss.txt", cfg.GetGNSSPath())
	assert.True(t, cfg.GetGNSSFrequency().Equal(decimal.NewFromInt(50)))
	assert.Equal(t, DefaultGNSSHeaders, cfg.GetGNSSHeaders())
	assert.Equal(t, "speed_of_sound.txt", cfg.GetSpeedOfSoundPath())
	assert.True(t, cfg.GetSpeedOfSoundFrequency().Equal(decimal.NewFromInt(1)))
	assert.Equal(t, []string{"speed"}, cfg.GetSpeedOfSoundHeaders())
	assert.False(t, cfg.GetFallbackToNearest())
	assert.Equal(t, 1, cfg.GetGeolocationWorkers())
	assert.True(t, cfg.GetHaltOnInvalidRange())
	assert.Empty(t, cfg.GetDBPath())
	assert.Empty(t, cfg.GetASCPath())
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultSurveyConfig(), fromFile); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestGetHeadersDoesNotAliasDefaults(t *testing.T) {
	h := EmptySurveyConfig().GetGNSSHeaders()
	h[0] = "changed"
	assert.Equal(t, "roll", DefaultGNSSHeaders[0])
}

func TestLoadSurveyConfig_JSON(t *testing.T) {
	path := writeConfig(t, "survey.json", `{
  "start_time": "12.5",
  "gnss": {"path": "/data/gnss.log", "frequency": 100, "headers": ["latitude", "longitude"]},
  "fusion": {"fallback_to_nearest": true},
  "geolocation": {"workers": 4, "halt_on_invalid_range": false},
  "output": {"asc_path": "out.asc"}
}`)

	cfg, err := LoadSurveyConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.GetStartTime().Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "/data/gnss.log", cfg.GetGNSSPath())
	assert.True(t, cfg.GetGNSSFrequency().Equal(decimal.NewFromInt(100)))
	assert.Equal(t, []string{"latitude", "longitude"}, cfg.GetGNSSHeaders())
	assert.True(t, cfg.GetFallbackToNearest())
	assert.Equal(t, 4, cfg.GetGeolocationWorkers())
	assert.False(t, cfg.GetHaltOnInvalidRange())
	assert.Equal(t, "out.asc", cfg.GetASCPath())

	// Untouched sections keep their defaults.
	assert.Equal(t, "sonar.txt", cfg.GetSonarPath())
	assert.Equal(t, []string{"speed"}, cfg.GetSpeedOfSoundHeaders())
	assert.Empty(t, cfg.GetDBPath())
}

func TestLoadSurveyConfig_YAML(t *testing.T) {
	for _, name := range []string{"survey.yaml", "survey.yml"} {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, name, `
start_time: "3"
sonar:
  path: sonar.log
  sample_frequency: 40000
speed_of_sound:
  frequency: 0.5
geolocation:
  workers: 2
output:
  db_path: survey.db
`)
			cfg, err := LoadSurveyConfig(path)
			require.NoError(t, err)

			assert.True(t, cfg.GetStartTime().Equal(decimal.NewFromInt(3)))
			assert.Equal(t, "sonar.log", cfg.GetSonarPath())
			assert.True(t, cfg.GetSonarSampleFrequency().Equal(decimal.NewFromInt(40000)))
			assert.True(t, cfg.GetSpeedOfSoundFrequency().Equal(decimal.RequireFromString("0.5")))
			assert.Equal(t, 2, cfg.GetGeolocationWorkers())
			assert.Equal(t, "survey.db", cfg.GetDBPath())
			assert.Equal(t, DefaultGNSSHeaders, cfg.GetGNSSHeaders())
		})
	}
}

func TestLoadSurveyConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"bad extension", "survey.toml", `x = 1`, "extension"},
		{"bad json", "survey.json", `{"start_time":`, "failed to parse config json"},
		{"bad yaml", "survey.yaml", "sonar: [", "failed to parse config yaml"},
		{"bad start time", "survey.json", `{"start_time": "soon"}`, "invalid start_time"},
		{"zero gnss frequency", "survey.json", `{"gnss": {"frequency": 0}}`, "gnss.frequency must be positive"},
		{"negative sound frequency", "survey.json", `{"speed_of_sound": {"frequency": -1}}`, "speed_of_sound.frequency must be positive"},
		{"zero sample frequency", "survey.json", `{"sonar": {"sample_frequency": 0}}`, "sonar.sample_frequency"},
		{"duplicate header", "survey.json", `{"gnss": {"headers": ["roll", "roll"]}}`, "repeats"},
		{"empty header", "survey.json", `{"speed_of_sound": {"headers": [""]}}`, "empty name"},
		{"no workers", "survey.json", `{"geolocation": {"workers": 0}}`, "workers must be at least 1"},
		{"infinite gnss frequency", "survey.yaml", "gnss:\n  frequency: .inf\n", "gnss.frequency must be positive and finite"},
		{"nan sound frequency", "survey.yaml", "speed_of_sound:\n  frequency: .nan\n", "speed_of_sound.frequency must be positive and finite"},
		{"nan sample frequency", "survey.yml", "sonar:\n  sample_frequency: .NaN\n", "sonar.sample_frequency must be positive and finite"},
		{"infinite sample frequency", "survey.yml", "sonar:\n  sample_frequency: .inf\n", "sonar.sample_frequency must be positive and finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSurveyConfig(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSurveyConfig_MissingFile(t *testing.T) {
	_, err := LoadSurveyConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadSurveyConfig_TooLarge(t *testing.T) {
	body := `{"start_time": "0", "pad": "` + strings.Repeat("x", maxFileSize) + `"}`
	_, err := LoadSurveyConfig(writeConfig(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadSurveyConfigFS(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	fsys.AddFile("cfg/survey.yaml", []byte("start_time: \"2.5\"\ngeolocation:\n  workers: 2\n"))
	fsys.AddFile("cfg/big.json", []byte(`{"pad": "`+strings.Repeat("x", maxFileSize)+`"}`))

	cfg, err := LoadSurveyConfigFS(fsys, "cfg/survey.yaml")
	require.NoError(t, err)
	assert.True(t, cfg.GetStartTime().Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, 2, cfg.GetGeolocationWorkers())

	_, err = LoadSurveyConfigFS(fsys, "cfg/big.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")

	_, err = LoadSurveyConfigFS(fsys, "cfg/absent.json")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSetters(t *testing.T) {
	cfg := EmptySurveyConfig()
	cfg.SetDBPath("a.db")
	cfg.SetASCPath("a.asc")
	cfg.SetStartTime("7")
	cfg.SetWorkers(3)

	assert.Equal(t, "a.db", cfg.GetDBPath())
	assert.Equal(t, "a.asc", cfg.GetASCPath())
	assert.True(t, cfg.GetStartTime().Equal(decimal.NewFromInt(7)))
	assert.Equal(t, 3, cfg.GetGeolocationWorkers())
	require.NoError(t, cfg.Validate())
}
