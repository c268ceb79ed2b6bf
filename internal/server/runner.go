package server

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tom-bench/internal/tomi"
)

// JobService is the part of the extraction manager the HTTP layer needs.
type JobService interface {
	CreateJob(request JobRequest, principal Principal, source string) (JobMeta, error)
}

// ExtractionManager runs queued extraction jobs on a bounded worker pool.
// Each job loads one ToMi split, groups it into contrastive buckets, exports
// the grouped files, and publishes the dataset through the store.
type ExtractionManager struct {
	cfg   ServerConfig
	store Store
	obs   *Observability
	queue chan queuedJob
	wg    sync.WaitGroup
}

type queuedJob struct {
	JobID   string
	Request JobRequest
}

func NewExtractionManager(cfg ServerConfig, store Store, obs *Observability) *ExtractionManager {
	maxParallel := cfg.Datasets.MaxParallelJobs
	if maxParallel <= 0 {
		maxParallel = 2
	}
	manager := &ExtractionManager{
		cfg:   cfg,
		store: store,
		obs:   obs,
		queue: make(chan queuedJob, maxParallel*8),
	}
	for i := 0; i < maxParallel; i++ {
		manager.wg.Add(1)
		go func() {
			defer manager.wg.Done()
			manager.worker()
		}()
	}
	return manager
}

func (m *ExtractionManager) Shutdown() {
	close(m.queue)
	m.wg.Wait()
}

func (m *ExtractionManager) CreateJob(request JobRequest, principal Principal, source string) (JobMeta, error) {
	if strings.TrimSpace(request.DataDir) == "" {
		request.DataDir = m.cfg.Datasets.DataRoot
	}
	if strings.TrimSpace(request.DataDir) == "" {
		return JobMeta{}, errors.New("data_dir is required")
	}
	if strings.TrimSpace(request.Split) == "" {
		request.Split = m.cfg.Datasets.DefaultSplit
	}
	switch request.Split {
	case "train", "val", "test":
	default:
		return JobMeta{}, errors.New("split must be one of train|val|test")
	}

	jobID := "job_" + uuid.NewString()
	if strings.TrimSpace(request.OutputDir) == "" {
		request.OutputDir = filepath.Join(m.cfg.Datasets.OutputRoot, jobID)
	}

	meta := JobMeta{
		JobID:      jobID,
		Status:     "queued",
		Source:     source,
		CreatorSub: principal.Subject,
		Request:    request,
		CreatedAt:  nowRFC3339(),
	}
	if err := m.store.CreateJob(meta); err != nil {
		return JobMeta{}, err
	}
	_, _ = m.store.AppendJobEvent(jobID, "queue", "extraction job queued", map[string]any{
		"split":  request.Split,
		"source": source,
	})
	select {
	case m.queue <- queuedJob{JobID: jobID, Request: request}:
	default:
		_, _ = m.store.UpdateJob(jobID, func(meta *JobMeta) {
			meta.Status = "error"
			meta.FinishedAt = nowRFC3339()
			meta.Error = "job queue full"
		})
		_, _ = m.store.AppendJobEvent(jobID, "error", "job queue full", nil)
		return JobMeta{}, errors.New("job queue full")
	}
	return meta, nil
}

func (m *ExtractionManager) worker() {
	for queued := range m.queue {
		m.executeJob(queued)
	}
}

func (m *ExtractionManager) executeJob(queued queuedJob) {
	ctx := context.Background()
	if m.obs != nil && m.obs.Tracer != nil {
		var span trace.Span
		ctx, span = m.obs.Tracer.Start(ctx, "extraction.job",
			trace.WithAttributes(
				attribute.String("job_id", queued.JobID),
				attribute.String("split", queued.Request.Split),
			))
		defer span.End()
	}
	startedAt := time.Now()
	_, _ = m.store.UpdateJob(queued.JobID, func(meta *JobMeta) {
		meta.Status = "running"
		meta.StartedAt = nowRFC3339()
	})
	_, _ = m.store.AppendJobEvent(queued.JobID, "start", "extraction started", nil)

	result, err := tomi.LoadSplit(queued.Request.DataDir, queued.Request.Split)
	if err != nil {
		m.failJob(ctx, queued.JobID, "load", err)
		return
	}
	m.obs.MarkExamplesLoaded(ctx, queued.Request.Split, int64(len(result.Examples)))
	loadData := map[string]any{
		"transcript_file": result.TranscriptFile,
		"trace_file":      result.TraceFile,
		"blocks":          result.BlockCount,
		"trace_lines":     result.TraceLineCount,
		"examples":        len(result.Examples),
	}
	if result.Skewed() {
		loadData["skewed"] = true
	}
	_, _ = m.store.AppendJobEvent(queued.JobID, "load", "input files parsed", loadData)

	grouped := tomi.GroupExamples(result.Examples)
	flattened := grouped.Flatten()
	m.obs.MarkControlsDropped(ctx, int64(len(result.Examples)-len(flattened)))
	_, _ = m.store.AppendJobEvent(queued.JobID, "group", "examples grouped", map[string]any{
		"base_types": len(grouped),
		"grouped":    len(flattened),
		"controls":   len(result.Examples) - len(flattened),
	})

	summary, err := tomi.ExportGrouped(grouped, queued.Request.OutputDir, tomi.Manifest{
		Split:          queued.Request.Split,
		TranscriptFile: result.TranscriptFile,
		TraceFile:      result.TraceFile,
		ExampleCount:   len(result.Examples),
	})
	if err != nil {
		m.failJob(ctx, queued.JobID, "export", err)
		return
	}
	_, _ = m.store.AppendJobEvent(queued.JobID, "export", "grouped dataset written", map[string]any{
		"output_dir": queued.Request.OutputDir,
	})

	if err := m.store.ReplaceExamples(queued.JobID, flattened); err != nil {
		m.failJob(ctx, queued.JobID, "publish", err)
		return
	}

	_, _ = m.store.UpdateJob(queued.JobID, func(meta *JobMeta) {
		meta.Status = "done"
		meta.FinishedAt = nowRFC3339()
		meta.TranscriptFile = result.TranscriptFile
		meta.TraceFile = result.TraceFile
		meta.ExampleCount = len(result.Examples)
		meta.Summary = summary
	})
	_, _ = m.store.AppendJobEvent(queued.JobID, "done", "extraction finished", nil)
	m.obs.MarkJob(ctx, "done")
	m.obs.MarkJobDuration(ctx, queued.Request.Split, time.Since(startedAt).Milliseconds())
}

func (m *ExtractionManager) failJob(ctx context.Context, jobID, stage string, cause error) {
	data := map[string]any{"stage": stage}
	if errors.Is(cause, tomi.ErrNoInputFiles) {
		data["missing_input"] = true
	}
	_, _ = m.store.UpdateJob(jobID, func(meta *JobMeta) {
		meta.Status = "error"
		meta.FinishedAt = nowRFC3339()
		meta.Error = cause.Error()
	})
	_, _ = m.store.AppendJobEvent(jobID, "error", cause.Error(), data)
	m.obs.MarkJob(ctx, "error")
}
