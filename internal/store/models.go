package store

import "time"

// Link is one entry in a Task's links array: a typed, directional reference
// to another task (e.g. a "subtask" link from an upstream epic to a
// downstream implementation task in a different queue).
type Link struct {
	TypeID    string `json:"type_id"`
	Direction string `json:"direction"`
	TargetKey string `json:"target_key"`
}

// Task is one issue in the remote tracker, mirrored locally.
type Task struct {
	ID             int64     `gorm:"primaryKey"`
	NaturalID      string    `gorm:"column:natural_id;uniqueIndex"`
	Key            string    `gorm:"column:key;uniqueIndex"`
	Summary        string    `gorm:"column:summary"`
	Description    string    `gorm:"column:description"`
	Status         string    `gorm:"column:status"`
	StatusDisplay  string    `gorm:"column:status_display"`
	Author         string    `gorm:"column:author"`
	Assignee       string    `gorm:"column:assignee"`
	Team           string    `gorm:"column:team"`
	BusinessClient string    `gorm:"column:business_client"`
	ProductTeam    string    `gorm:"column:product_team"`
	ProfitForecast string    `gorm:"column:profit_forecast"`
	Links          []byte    `gorm:"column:links;type:jsonb"` // marshaled []Link
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
	LastSyncAt     time.Time `gorm:"column:last_sync_at;index"`
}

// TableName pins the table name so it doesn't depend on gorm's pluralizer.
func (Task) TableName() string { return "tasks" }

// StatusHistoryEntry is one interval a task spent holding one status.
// EndDate is nil for the current, still-open interval.
type StatusHistoryEntry struct {
	ID            int64      `gorm:"primaryKey"`
	TaskID        int64      `gorm:"column:task_id;index:idx_task_status_start,priority:1"`
	NaturalID     string     `gorm:"column:natural_id"`
	Status        string     `gorm:"column:status;index:idx_task_status_start,priority:2"`
	StatusDisplay string     `gorm:"column:status_display"`
	StartDate     time.Time  `gorm:"column:start_date;index:idx_task_status_start,priority:3;index:idx_start_end,priority:1"`
	EndDate       *time.Time `gorm:"column:end_date;index:idx_start_end,priority:2"`
}

// TableName pins the table name so it doesn't depend on gorm's pluralizer.
func (StatusHistoryEntry) TableName() string { return "task_history" }

// Duration returns how long the interval lasted, using asOf in place of "now"
// for an interval still open at the time of reporting.
func (e StatusHistoryEntry) Duration(asOf time.Time) time.Duration {
	end := asOf
	if e.EndDate != nil {
		end = *e.EndDate
	}
	if end.Before(e.StartDate) {
		return 0
	}
	return end.Sub(e.StartDate)
}

// RunStatus is the lifecycle state of a SyncRunLog row.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// SyncRunLog is the append-only audit row for one sync invocation.
type SyncRunLog struct {
	ID                     string    `gorm:"column:id;primaryKey"`
	StartedAt              time.Time `gorm:"column:started_at"`
	CompletedAt            *time.Time `gorm:"column:completed_at"`
	Status                 RunStatus `gorm:"column:status;index"`
	TasksProcessed         int       `gorm:"column:tasks_processed"`
	TasksCreated           int       `gorm:"column:tasks_created"`
	TasksUpdated           int       `gorm:"column:tasks_updated"`
	HistoryEntriesProcessed int      `gorm:"column:history_entries_processed"`
	ErrorsCount            int       `gorm:"column:errors_count"`
	ErrorMessage           string    `gorm:"column:error_message"`
}

// TableName pins the table name so it doesn't depend on gorm's pluralizer.
func (SyncRunLog) TableName() string { return "sync_runs" }

// RunCounters accumulates the figures a worker pool reports back to the
// orchestrator for the final SyncRunLog write.
type RunCounters struct {
	TasksProcessed          int
	TasksCreated            int
	TasksUpdated            int
	HistoryEntriesProcessed int
	ErrorsCount             int
}
