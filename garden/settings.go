package garden

import (
	"errors"
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Settings struct {
	Listen       string `yaml:"listen"`
	DatabasePath string `yaml:"databasePath"`

	// PlantAPIBaseURL points at the external plant-data provider. Empty
	// disables the lookup; seeding then relies on stored plant defaults.
	PlantAPIBaseURL string `yaml:"plantAPIBaseURL"`

	// Timezone anchors dashboard calendar boundaries.
	Timezone string `yaml:"timezone"`

	// OverdueThresholdDays is the default threshold for the overdue sweep.
	OverdueThresholdDays int `yaml:"overdueThresholdDays"`

	// SpawnOnComplete switches complete/skip from in-place due-date reuse
	// to spawning a fresh pending sibling, matching the overdue sweep.
	SpawnOnComplete bool `yaml:"spawnOnComplete"`

	// UseCustomIntervalPerPlant lets per-plant interval overrides drive
	// the due-date math instead of the notification's own interval.
	UseCustomIntervalPerPlant bool `yaml:"useCustomIntervalPerPlant"`

	// AutoEvictOnResize makes the HTTP layer chain a prune after a
	// shrinking resize. The grid itself never evicts inside Resize.
	AutoEvictOnResize bool `yaml:"autoEvictOnResize"`
}

var DefaultSettings = Settings{
	Listen:               ":8080",
	DatabasePath:         "db.sqlite",
	Timezone:             "UTC",
	OverdueThresholdDays: 14,
}

// LoadSettings reads the settings file, creating it with defaults on first
// run.
func LoadSettings(path string) (*Settings, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		settings := DefaultSettings

		data, err := yaml.Marshal(settings)
		if err != nil {
			return nil, err
		}

		if err := ioutil.WriteFile(path, data, 0644); err != nil {
			return nil, err
		}

		return &settings, nil
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, err
	}

	return &settings, nil
}

// Location resolves the configured timezone, falling back to UTC.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
