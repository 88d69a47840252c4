package pokopred

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all configurable parameters that influence pipeline outcomes.
// It is constructed once per run and passed explicitly into every stage; the
// thresholds recorded on a PredictionRecord are always the ones carried here.
type Config struct {
	// Storage and cache locations
	DBPath    string `yaml:"dbPath"`
	CachePath string `yaml:"cachePath"`

	// === DATA SELECTION ===

	Leagues []string `yaml:"leagues"` // football-data.co.uk division codes, e.g. E0, E1
	Seasons []string `yaml:"seasons"` // "yyyy/yyyy" form, see ParseSeason

	// === TEAM STATISTICS CALCULATION ===

	FormWindow              int     `yaml:"formWindow"`              // rolling results kept in the form encoding (default: 5)
	DefaultHomeGoalsPerGame float64 `yaml:"defaultHomeGoalsPerGame"` // neutral prior when a team has no history (default: 1.5)
	DefaultAwayGoalsPerGame float64 `yaml:"defaultAwayGoalsPerGame"` // neutral prior when a team has no history (default: 1.1)

	// === ENSEMBLE ===

	EnsembleMembers []string `yaml:"ensembleMembers"` // see NewClassifier for recognised names
	MinTrainingRows int      `yaml:"minTrainingRows"` // below this Fit fails with InsufficientDataError
	ImbalanceRatio  float64  `yaml:"imbalanceRatio"`  // class share below this logs ClassImbalanceWarning (default: 0.1)

	// === DRAW CONVERSION THRESHOLDS ===

	// Both comparisons are inclusive: a Home/Away prediction is converted to a
	// Draw when haConfidence <= MaxModelConfidence AND
	// drawProbability >= MinDrawProbability. Confidence is on the 0-10 scale
	// produced by the ensemble; draw probability is in [0,1].
	MaxModelConfidence float64 `yaml:"maxModelConfidence"`
	MinDrawProbability float64 `yaml:"minDrawProbability"`

	// === DRAW PROBABILITY ESTIMATION ===

	GoalRange     int     `yaml:"goalRange"`     // scoreline matrix considers 0..GoalRange-1 goals (default: 9)
	DixonColesRho float64 `yaml:"dixonColesRho"` // low-score correlation parameter (default: -0.03)
	MaxGoalsCap   float64 `yaml:"maxGoalsCap"`   // expected goals ceiling (default: 10.0)

	// === DOWNLOADS ===

	DataBaseURL     string        `yaml:"dataBaseURL"`     // season CSV endpoint
	FixturesBaseURL string        `yaml:"fixturesBaseURL"` // upcoming fixtures page
	DownloadRetries int           `yaml:"downloadRetries"` // bounded attempts before a terminal error
	DownloadBackoff time.Duration `yaml:"downloadBackoff"` // sleep between attempts, doubled each retry
}

// DefaultConfig returns the default configuration with all standard values
func DefaultConfig() *Config {
	return &Config{
		DBPath:    "pokopred.db",
		CachePath: ".pokopred/cache/",

		Leagues: []string{"E0", "E1", "E2", "E3"},
		Seasons: []string{"2019/2020", "2020/2021", "2021/2022", "2022/2023", "2023/2024", "2024/2025", "2025/2026"},

		FormWindow:              5,
		DefaultHomeGoalsPerGame: 1.5,
		DefaultAwayGoalsPerGame: 1.1,

		EnsembleMembers: []string{"logistic", "bayes", "centroid", "stumps"},
		MinTrainingRows: 50,
		ImbalanceRatio:  0.1,

		MaxModelConfidence: 7.0,
		MinDrawProbability: 0.35,

		GoalRange:     9,
		DixonColesRho: -0.03,
		MaxGoalsCap:   10.0,

		DataBaseURL:     "https://www.football-data.co.uk/mmz4281",
		FixturesBaseURL: "https://www.football-data.co.uk/fixtures",
		DownloadRetries: 3,
		DownloadBackoff: 2 * time.Second,
	}
}

// LoadConfig overlays the defaults with values from a YAML file. A missing
// path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ValidateConfig ensures all configuration values are within reasonable ranges
func ValidateConfig(config *Config) error {
	if len(config.Leagues) == 0 {
		return fmt.Errorf("at least one league must be configured")
	}

	if len(config.Seasons) == 0 {
		return fmt.Errorf("at least one season must be configured")
	}

	for _, season := range config.Seasons {
		if _, err := ParseSeason(season); err != nil {
			return fmt.Errorf("invalid season %q: %w", season, err)
		}
	}

	if config.FormWindow < 1 {
		return fmt.Errorf("FormWindow must be at least 1, got: %d", config.FormWindow)
	}

	if len(config.EnsembleMembers) == 0 {
		return fmt.Errorf("at least one ensemble member must be configured")
	}

	if config.MinTrainingRows < 1 {
		return fmt.Errorf("MinTrainingRows must be at least 1, got: %d", config.MinTrainingRows)
	}

	if config.MaxModelConfidence < 0.0 || config.MaxModelConfidence > 10.0 {
		return fmt.Errorf("MaxModelConfidence must be on the 0-10 confidence scale, got: %f", config.MaxModelConfidence)
	}

	if config.MinDrawProbability < 0.0 || config.MinDrawProbability > 1.0 {
		return fmt.Errorf("MinDrawProbability must be between 0.0 and 1.0, got: %f", config.MinDrawProbability)
	}

	if config.GoalRange < 3 {
		return fmt.Errorf("GoalRange should be at least 3 to capture realistic scores, got: %d", config.GoalRange)
	}

	if config.DixonColesRho > 0 || config.DixonColesRho < -0.1 {
		return fmt.Errorf("DixonColesRho should be between -0.1 and 0, got: %f", config.DixonColesRho)
	}

	if config.DownloadRetries < 1 {
		return fmt.Errorf("DownloadRetries must be at least 1, got: %d", config.DownloadRetries)
	}

	return nil
}
