package server

import (
	"time"

	"tom-bench/internal/tomi"
)

type Principal struct {
	Subject  string `json:"subject"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// JobRequest describes one extraction job: which ToMi split to parse and
// where the grouped output lands. Empty fields fall back to server config.
type JobRequest struct {
	DataDir   string `json:"data_dir,omitempty"`
	Split     string `json:"split,omitempty"`
	OutputDir string `json:"output_dir,omitempty"`
}

type JobMeta struct {
	JobID          string       `json:"job_id"`
	Status         string       `json:"status"`
	CreatorSub     string       `json:"creator_sub,omitempty"`
	Source         string       `json:"source"`
	Request        JobRequest   `json:"request"`
	CreatedAt      string       `json:"created_at"`
	StartedAt      string       `json:"started_at,omitempty"`
	FinishedAt     string       `json:"finished_at,omitempty"`
	Error          string       `json:"error,omitempty"`
	TranscriptFile string       `json:"transcript_file,omitempty"`
	TraceFile      string       `json:"trace_file,omitempty"`
	ExampleCount   int          `json:"example_count"`
	Summary        tomi.Summary `json:"summary,omitempty"`
}

type JobEvent struct {
	Seq       int64          `json:"seq"`
	Timestamp string         `json:"timestamp"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

type Overview struct {
	GeneratedAt    string `json:"generated_at"`
	TotalJobs      int    `json:"total_jobs"`
	ActiveJobs     int    `json:"active_jobs"`
	DoneJobs       int    `json:"done_jobs"`
	ErrorJobs      int    `json:"error_jobs"`
	TotalExamples  int    `json:"total_examples"`
	TomExamples    int    `json:"tom_examples"`
	NoTomExamples  int    `json:"no_tom_examples"`
	BaseTypeCount  int    `json:"base_type_count"`
	LatestJobID    string `json:"latest_job_id,omitempty"`
	LatestFinished string `json:"latest_finished_at,omitempty"`
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
