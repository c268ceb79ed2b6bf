package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"tom-bench/internal/tomi"
)

type Store interface {
	CreateJob(meta JobMeta) error
	UpdateJob(jobID string, mutate func(*JobMeta)) (JobMeta, error)
	GetJob(jobID string) (JobMeta, bool)
	ListJobs(limit int) []JobMeta
	AppendJobEvent(jobID string, stage, message string, data map[string]any) (JobEvent, error)
	ListJobEvents(jobID string, sinceSeq int64) []JobEvent
	ReplaceExamples(jobID string, examples []tomi.Example) error
	ListExamples(baseType, condition string, limit int) []tomi.Example
	GetOverview() Overview
}

// MemoryFileStore keeps jobs, events and the current grouped dataset in
// memory, optionally snapshotting to a JSON file after every mutation.
type MemoryFileStore struct {
	mu            sync.RWMutex
	path          string
	jobs          map[string]JobMeta
	events        map[string][]JobEvent
	nextSeq       map[string]int64
	examples      []tomi.Example
	examplesJobID string
}

func NewMemoryFileStore(path string) (*MemoryFileStore, error) {
	store := &MemoryFileStore{
		path:    path,
		jobs:    map[string]JobMeta{},
		events:  map[string][]JobEvent{},
		nextSeq: map[string]int64{},
	}
	if strings.TrimSpace(path) == "" {
		return store, nil
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MemoryFileStore) CreateJob(meta JobMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[meta.JobID]; exists {
		return fmt.Errorf("job %s already exists", meta.JobID)
	}
	s.jobs[meta.JobID] = meta
	if _, ok := s.events[meta.JobID]; !ok {
		s.events[meta.JobID] = []JobEvent{}
	}
	if _, ok := s.nextSeq[meta.JobID]; !ok {
		s.nextSeq[meta.JobID] = 1
	}
	return s.persistLocked()
}

func (s *MemoryFileStore) UpdateJob(jobID string, mutate func(*JobMeta)) (JobMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.jobs[jobID]
	if !ok {
		return JobMeta{}, fmt.Errorf("job not found: %s", jobID)
	}
	if mutate != nil {
		mutate(&meta)
	}
	s.jobs[jobID] = meta
	if err := s.persistLocked(); err != nil {
		return JobMeta{}, err
	}
	return meta, nil
}

func (s *MemoryFileStore) GetJob(jobID string) (JobMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.jobs[jobID]
	return meta, ok
}

func (s *MemoryFileStore) ListJobs(limit int) []JobMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]JobMeta, 0, len(s.jobs))
	for _, meta := range s.jobs {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt > out[j].CreatedAt
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryFileStore) AppendJobEvent(jobID string, stage, message string, data map[string]any) (JobEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return JobEvent{}, fmt.Errorf("job not found: %s", jobID)
	}
	seq := s.nextSeq[jobID]
	if seq < 1 {
		seq = 1
	}
	event := JobEvent{
		Seq:       seq,
		Timestamp: nowRFC3339(),
		Stage:     stage,
		Message:   message,
		Data:      cloneMap(data),
	}
	s.nextSeq[jobID] = seq + 1
	s.events[jobID] = append(s.events[jobID], event)
	if err := s.persistLocked(); err != nil {
		return JobEvent{}, err
	}
	return event, nil
}

func (s *MemoryFileStore) ListJobEvents(jobID string, sinceSeq int64) []JobEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[jobID]
	if len(events) == 0 {
		return []JobEvent{}
	}
	out := make([]JobEvent, 0, len(events))
	for _, event := range events {
		if event.Seq > sinceSeq {
			out = append(out, event)
		}
	}
	return out
}

// ReplaceExamples swaps in the grouped dataset produced by the given job.
// The last completed job wins; the service serves one current dataset.
func (s *MemoryFileStore) ReplaceExamples(jobID string, examples []tomi.Example) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.examples = append([]tomi.Example(nil), examples...)
	s.examplesJobID = jobID
	return s.persistLocked()
}

func (s *MemoryFileStore) ListExamples(baseType, condition string, limit int) []tomi.Example {
	s.mu.RLock()
	defer s.mu.RUnlock()
	capHint := len(s.examples)
	if limit > 0 && limit < capHint {
		capHint = limit
	}
	out := make([]tomi.Example, 0, capHint)
	for _, example := range s.examples {
		if baseType != "" && example.BaseQuestionType != baseType {
			continue
		}
		switch condition {
		case tomi.ConditionTom:
			if !example.RequiresTom {
				continue
			}
		case tomi.ConditionNoTom:
			if example.RequiresTom {
				continue
			}
		}
		out = append(out, example)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (s *MemoryFileStore) GetOverview() Overview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	overview := Overview{
		GeneratedAt: nowRFC3339(),
	}
	for _, job := range s.jobs {
		overview.TotalJobs++
		switch strings.ToLower(strings.TrimSpace(job.Status)) {
		case "queued", "running":
			overview.ActiveJobs++
		case "done":
			overview.DoneJobs++
			if job.FinishedAt > overview.LatestFinished {
				overview.LatestFinished = job.FinishedAt
				overview.LatestJobID = job.JobID
			}
		case "error":
			overview.ErrorJobs++
		}
	}
	baseTypes := map[string]bool{}
	for _, example := range s.examples {
		overview.TotalExamples++
		if example.RequiresTom {
			overview.TomExamples++
		} else {
			overview.NoTomExamples++
		}
		baseTypes[example.BaseQuestionType] = true
	}
	overview.BaseTypeCount = len(baseTypes)
	return overview
}

type storeSnapshot struct {
	Jobs          []JobMeta             `json:"jobs"`
	Events        map[string][]JobEvent `json:"events"`
	Examples      []tomi.Example        `json:"examples"`
	ExamplesJobID string                `json:"examples_job_id,omitempty"`
}

func (s *MemoryFileStore) load() error {
	data, err := os.ReadFile(filepath.Clean(s.path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read store snapshot: %w", err)
	}
	var snapshot storeSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode store snapshot: %w", err)
	}
	for _, job := range snapshot.Jobs {
		s.jobs[job.JobID] = job
	}
	for jobID, events := range snapshot.Events {
		s.events[jobID] = events
		maxSeq := int64(0)
		for _, event := range events {
			if event.Seq > maxSeq {
				maxSeq = event.Seq
			}
		}
		s.nextSeq[jobID] = maxSeq + 1
	}
	s.examples = snapshot.Examples
	s.examplesJobID = snapshot.ExamplesJobID
	return nil
}

func (s *MemoryFileStore) persistLocked() error {
	if strings.TrimSpace(s.path) == "" {
		return nil
	}
	jobs := make([]JobMeta, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt < jobs[j].CreatedAt
	})
	snapshot := storeSnapshot{
		Jobs:          jobs,
		Events:        s.events,
		Examples:      s.examples,
		ExamplesJobID: s.examplesJobID,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write store temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace store snapshot: %w", err)
	}
	return nil
}

func cloneMap(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
