package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"tom-bench/internal/tomi"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) CreateJob(meta JobMeta) error {
	req, _ := json.Marshal(meta.Request)
	var summary []byte
	if meta.Summary != nil {
		summary, _ = json.Marshal(meta.Summary)
	}
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO jobs (job_id,status,creator_sub,source,request,created_at,transcript_file,trace_file,example_count,summary)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		meta.JobID, meta.Status, nullStr(meta.CreatorSub), meta.Source, req,
		meta.CreatedAt, nullStr(meta.TranscriptFile), nullStr(meta.TraceFile),
		meta.ExampleCount, summary)
	return err
}

func (s *PgStore) UpdateJob(jobID string, mutate func(*JobMeta)) (JobMeta, error) {
	tx, err := s.pool.Begin(context.Background())
	if err != nil {
		return JobMeta{}, err
	}
	defer tx.Rollback(context.Background())

	row := tx.QueryRow(context.Background(),
		`SELECT job_id,status,creator_sub,source,request,created_at,started_at,finished_at,
		        error,transcript_file,trace_file,example_count,summary
		 FROM jobs WHERE job_id=$1 FOR UPDATE`, jobID)
	meta, err := scanJobMeta(row)
	if err != nil {
		return JobMeta{}, fmt.Errorf("job not found: %s", jobID)
	}
	if mutate != nil {
		mutate(&meta)
	}
	req, _ := json.Marshal(meta.Request)
	var summary []byte
	if meta.Summary != nil {
		summary, _ = json.Marshal(meta.Summary)
	}
	_, err = tx.Exec(context.Background(),
		`UPDATE jobs SET status=$1,started_at=$2,finished_at=$3,error=$4,
		 transcript_file=$5,trace_file=$6,example_count=$7,summary=$8,request=$9
		 WHERE job_id=$10`,
		meta.Status, nullStr(meta.StartedAt), nullStr(meta.FinishedAt), nullStr(meta.Error),
		nullStr(meta.TranscriptFile), nullStr(meta.TraceFile), meta.ExampleCount,
		summary, req, jobID)
	if err != nil {
		return JobMeta{}, err
	}
	return meta, tx.Commit(context.Background())
}

func (s *PgStore) GetJob(jobID string) (JobMeta, bool) {
	row := s.pool.QueryRow(context.Background(),
		`SELECT job_id,status,creator_sub,source,request,created_at,started_at,finished_at,
		        error,transcript_file,trace_file,example_count,summary
		 FROM jobs WHERE job_id=$1`, jobID)
	meta, err := scanJobMeta(row)
	if err != nil {
		return JobMeta{}, false
	}
	return meta, true
}

func (s *PgStore) ListJobs(limit int) []JobMeta {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(context.Background(),
		`SELECT job_id,status,creator_sub,source,request,created_at,started_at,finished_at,
		        error,transcript_file,trace_file,example_count,summary
		 FROM jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return []JobMeta{}
	}
	defer rows.Close()
	var out []JobMeta
	for rows.Next() {
		meta, err := scanJobMeta(rows)
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	if out == nil {
		return []JobMeta{}
	}
	return out
}

func (s *PgStore) AppendJobEvent(jobID string, stage, message string, data map[string]any) (JobEvent, error) {
	var dataJSON []byte
	if data != nil {
		dataJSON, _ = json.Marshal(data)
	}
	var seq int64
	var ts string
	err := s.pool.QueryRow(context.Background(),
		`INSERT INTO job_events (job_id, seq, stage, message, data)
		 VALUES ($1, COALESCE((SELECT MAX(seq) FROM job_events WHERE job_id=$1),0)+1, $2, $3, $4)
		 RETURNING seq, to_char(timestamp AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')`,
		jobID, stage, message, dataJSON).Scan(&seq, &ts)
	if err != nil {
		return JobEvent{}, err
	}
	return JobEvent{
		Seq:       seq,
		Timestamp: ts,
		Stage:     stage,
		Message:   message,
		Data:      data,
	}, nil
}

func (s *PgStore) ListJobEvents(jobID string, sinceSeq int64) []JobEvent {
	rows, err := s.pool.Query(context.Background(),
		`SELECT seq, to_char(timestamp AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'), stage, message, data
		 FROM job_events WHERE job_id=$1 AND seq>$2 ORDER BY seq`, jobID, sinceSeq)
	if err != nil {
		return []JobEvent{}
	}
	defer rows.Close()
	var out []JobEvent
	for rows.Next() {
		var e JobEvent
		var dataJSON []byte
		if err := rows.Scan(&e.Seq, &e.Timestamp, &e.Stage, &e.Message, &dataJSON); err != nil {
			continue
		}
		if len(dataJSON) > 0 {
			_ = json.Unmarshal(dataJSON, &e.Data)
		}
		out = append(out, e)
	}
	if out == nil {
		return []JobEvent{}
	}
	return out
}

// ReplaceExamples swaps the served dataset for the one produced by jobID.
// Old rows go away in the same transaction, so readers never see a mix of
// two extraction runs.
func (s *PgStore) ReplaceExamples(jobID string, examples []tomi.Example) error {
	ctx := context.Background()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM examples`); err != nil {
		return fmt.Errorf("clear examples: %w", err)
	}
	for position, example := range examples {
		condition := tomi.ConditionNoTom
		if example.RequiresTom {
			condition = tomi.ConditionTom
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO examples (job_id,position,base_question_type,condition,story,question,answer,
			                       question_type,story_type,requires_tom,tom_order)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			jobID, position, example.BaseQuestionType, condition, example.Story,
			example.Question, example.Answer, example.QuestionType, example.StoryType,
			example.RequiresTom, example.TomOrder)
		if err != nil {
			return fmt.Errorf("insert example %d: %w", position, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PgStore) ListExamples(baseType, condition string, limit int) []tomi.Example {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT story,question,answer,question_type,story_type,requires_tom,tom_order,base_question_type
	          FROM examples`
	var clauses []string
	var args []any
	if baseType != "" {
		args = append(args, baseType)
		clauses = append(clauses, fmt.Sprintf("base_question_type=$%d", len(args)))
	}
	if condition == tomi.ConditionTom || condition == tomi.ConditionNoTom {
		args = append(args, condition)
		clauses = append(clauses, fmt.Sprintf("condition=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY position LIMIT $%d", len(args))

	rows, err := s.pool.Query(context.Background(), query, args...)
	if err != nil {
		return []tomi.Example{}
	}
	defer rows.Close()
	var out []tomi.Example
	for rows.Next() {
		var example tomi.Example
		if err := rows.Scan(&example.Story, &example.Question, &example.Answer,
			&example.QuestionType, &example.StoryType, &example.RequiresTom,
			&example.TomOrder, &example.BaseQuestionType); err != nil {
			continue
		}
		out = append(out, example)
	}
	if out == nil {
		return []tomi.Example{}
	}
	return out
}

func (s *PgStore) GetOverview() Overview {
	overview := Overview{GeneratedAt: nowRFC3339()}
	_ = s.pool.QueryRow(context.Background(),
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ('queued','running')),
			COUNT(*) FILTER (WHERE status='done'),
			COUNT(*) FILTER (WHERE status='error')
		 FROM jobs`).Scan(
		&overview.TotalJobs, &overview.ActiveJobs, &overview.DoneJobs, &overview.ErrorJobs)

	_ = s.pool.QueryRow(context.Background(),
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE requires_tom),
			COUNT(*) FILTER (WHERE NOT requires_tom),
			COUNT(DISTINCT base_question_type)
		 FROM examples`).Scan(
		&overview.TotalExamples, &overview.TomExamples, &overview.NoTomExamples,
		&overview.BaseTypeCount)

	var jobID, finishedAt *string
	row := s.pool.QueryRow(context.Background(),
		`SELECT job_id, finished_at FROM jobs WHERE status='done'
		 ORDER BY finished_at DESC NULLS LAST LIMIT 1`)
	if err := row.Scan(&jobID, &finishedAt); err == nil {
		overview.LatestJobID = deref(jobID)
		overview.LatestFinished = deref(finishedAt)
	}
	return overview
}

// --- helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanJobMeta(row scannable) (JobMeta, error) {
	var m JobMeta
	var reqJSON, summaryJSON []byte
	var creatorSub, startedAt, finishedAt, errStr, transcriptFile, traceFile *string
	err := row.Scan(&m.JobID, &m.Status, &creatorSub, &m.Source, &reqJSON,
		&m.CreatedAt, &startedAt, &finishedAt, &errStr, &transcriptFile,
		&traceFile, &m.ExampleCount, &summaryJSON)
	if err != nil {
		return JobMeta{}, err
	}
	m.CreatorSub = deref(creatorSub)
	m.StartedAt = deref(startedAt)
	m.FinishedAt = deref(finishedAt)
	m.Error = deref(errStr)
	m.TranscriptFile = deref(transcriptFile)
	m.TraceFile = deref(traceFile)
	_ = json.Unmarshal(reqJSON, &m.Request)
	if len(summaryJSON) > 0 {
		_ = json.Unmarshal(summaryJSON, &m.Summary)
	}
	return m, nil
}

func nullStr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ensure both stores implement Store at compile time.
var (
	_ Store = (*PgStore)(nil)
	_ Store = (*MemoryFileStore)(nil)
)
