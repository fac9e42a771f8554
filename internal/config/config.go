package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// TrackerConfig is the full set of environment/config inputs enumerated in
// spec.md §6: API base URL and token, organization id, worker count, request
// delay, scroll page size, the short-transition threshold, the lock path,
// the database DSN, and the quarters/status-mapping file paths.
type TrackerConfig struct {
	APIBaseURL        string
	APIToken          string
	OrgID             string
	MaxWorkers        int
	RequestDelay      time.Duration
	ScrollPageSize    int
	BounceWindow      time.Duration
	LockPath          string
	DatabaseDSN       string
	QuartersFile      string
	StatusMapFile     string
	ReportsDir        string
	OrphanedRunMaxAge time.Duration
	GroupBy           string

	HierarchyQueuePrefix   string
	HierarchyRootPrefix    string
	HierarchyLinkTypeID    string
	HierarchyLinkDirection string
	HierarchyMaxDepth      int
}

// Load builds a TrackerConfig from environment variables (all prefixed
// TRACKER_) with the given defaults, then validates required fields.
func Load() (*TrackerConfig, error) {
	env := NewEnvConfig("TRACKER")

	token, err := env.MustGetString("API_TOKEN")
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	dsn, err := env.MustGetString("DATABASE_DSN")
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &TrackerConfig{
		APIBaseURL:        env.GetString("API_BASE_URL", "https://api.tracker.yandex.net"),
		APIToken:          token,
		OrgID:             env.GetString("ORG_ID", ""),
		MaxWorkers:        env.GetInt("MAX_WORKERS", 10),
		RequestDelay:      env.GetDuration("REQUEST_DELAY", 100*time.Millisecond),
		ScrollPageSize:    env.GetInt("SCROLL_PAGE_SIZE", 50),
		BounceWindow:      env.GetDuration("BOUNCE_WINDOW", 5*time.Minute),
		LockPath:          env.GetString("LOCK_PATH", "/tmp/tracker-sync.lock"),
		DatabaseDSN:       dsn,
		QuartersFile:      env.GetString("QUARTERS_FILE", ""),
		StatusMapFile:     env.GetString("STATUS_MAPPING_FILE", ""),
		ReportsDir:        env.GetString("REPORTS_DIR", "./reports"),
		OrphanedRunMaxAge: env.GetDuration("ORPHANED_RUN_MAX_AGE", 2*time.Hour),
		GroupBy:           env.GetString("GROUP_BY", "author"),

		HierarchyQueuePrefix:   env.GetString("HIERARCHY_QUEUE_PREFIX", ""),
		HierarchyRootPrefix:    env.GetString("HIERARCHY_ROOT_PREFIX", ""),
		HierarchyLinkTypeID:    env.GetString("HIERARCHY_LINK_TYPE_ID", "subtask"),
		HierarchyLinkDirection: env.GetString("HIERARCHY_LINK_DIRECTION", "inward"),
		HierarchyMaxDepth:      env.GetInt("HIERARCHY_MAX_DEPTH", 10),
	}

	v := NewValidator()
	v.RequireString("org id", cfg.OrgID)
	v.RequirePositiveInt("max workers", cfg.MaxWorkers)
	v.RequirePositiveInt("scroll page size", cfg.ScrollPageSize)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// BindFlags binds the quarters_file and status_mapping_file viper keys to
// their TRACKER_ environment variables, following the teacher's flag/env
// binding in cli/root.go. It registers no flags itself: the CLI binds its
// --quarters-file/--status-mapping-file flags to the same keys, and viper
// gives an explicitly set flag precedence over the environment variable.
func BindFlags(v *viper.Viper) {
	v.SetEnvPrefix("TRACKER")
	v.AutomaticEnv()
	_ = v.BindEnv("quarters_file", "TRACKER_QUARTERS_FILE")
	_ = v.BindEnv("status_mapping_file", "TRACKER_STATUS_MAPPING_FILE")
}

// Quarter is a single named reporting period, e.g. "2025-Q3".
type Quarter struct {
	Name  string    `yaml:"name"`
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// QuarterSet is the parsed content of the quarters file: an ordered,
// non-overlapping list of reporting periods used to bucket quarter_ttd and
// quarter_ttm in the ttm-details report.
type QuarterSet struct {
	Quarters []Quarter `yaml:"quarters"`
}

// LoadQuarters parses the YAML quarters file named by path. An empty path
// yields an empty QuarterSet (quarter columns left blank in reports).
func LoadQuarters(path string) (*QuarterSet, error) {
	if path == "" {
		return &QuarterSet{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading quarters file: %w", err)
	}
	var qs QuarterSet
	if err := yaml.Unmarshal(raw, &qs); err != nil {
		return nil, fmt.Errorf("config: parsing quarters file: %w", err)
	}
	for i, q := range qs.Quarters {
		if q.Name == "" || !q.End.After(q.Start) {
			return nil, fmt.Errorf("config: quarters file entry %d invalid: %+v", i, q)
		}
	}
	return &qs, nil
}

// Containing returns the quarter whose [Start, End) interval contains t, and
// true if one was found.
func (qs *QuarterSet) Containing(t time.Time) (Quarter, bool) {
	for _, q := range qs.Quarters {
		if !t.Before(q.Start) && t.Before(q.End) {
			return q, true
		}
	}
	return Quarter{}, false
}

// StatusMapping classifies remote tracker statuses into the sets the
// metrics engine reasons about (spec.md §3): which statuses count as
// "discovery", which count as "done", which are pause statuses excluded
// from delivery-time accounting, which are external-test statuses, plus the
// two anchor statuses ("ready-for-dev" and "in-work") used directly by
// individual metric formulas.
type StatusMapping struct {
	DiscoveryStatuses    []string `yaml:"discovery_statuses"`
	DoneStatuses         []string `yaml:"done_statuses"`
	PauseStatuses        []string `yaml:"pause_statuses"`
	ExternalTestStatuses []string `yaml:"external_test_statuses"`
	ReadyForDevStatus    string   `yaml:"ready_for_dev_status"`
	InWorkStatus         string   `yaml:"in_work_status"`
	TestingStatus        string   `yaml:"testing_status"`
}

// LoadStatusMapping parses the YAML status-mapping file named by path.
func LoadStatusMapping(path string) (*StatusMapping, error) {
	if path == "" {
		return &StatusMapping{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading status mapping file: %w", err)
	}
	var sm StatusMapping
	if err := yaml.Unmarshal(raw, &sm); err != nil {
		return nil, fmt.Errorf("config: parsing status mapping file: %w", err)
	}
	return &sm, nil
}

func contains(set []string, status string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// IsDiscovery reports whether status is classified as a discovery status.
func (sm *StatusMapping) IsDiscovery(status string) bool { return contains(sm.DiscoveryStatuses, status) }

// IsDone reports whether status is classified as a done status.
func (sm *StatusMapping) IsDone(status string) bool { return contains(sm.DoneStatuses, status) }

// IsPause reports whether status is a pause status, excluded from delivery
// durations.
func (sm *StatusMapping) IsPause(status string) bool { return contains(sm.PauseStatuses, status) }

// IsExternalTest reports whether status is classified as an external-test
// status.
func (sm *StatusMapping) IsExternalTest(status string) bool {
	return contains(sm.ExternalTestStatuses, status)
}
