package server

import (
	"path/filepath"
	"testing"

	"tom-bench/internal/tomi"
)

func testExample(baseType string, requiresTom bool) tomi.Example {
	suffix := "_no_tom"
	if requiresTom {
		suffix = "_tom"
	}
	return tomi.Example{
		Story:            "1 Anne entered the kitchen.",
		Question:         "Where is the apple?",
		Answer:           "basket",
		QuestionType:     baseType + suffix,
		StoryType:        "false_belief",
		RequiresTom:      requiresTom,
		BaseQuestionType: baseType,
	}
}

func TestMemoryStoreJobLifecycle(t *testing.T) {
	store, err := NewMemoryFileStore("")
	if err != nil {
		t.Fatalf("NewMemoryFileStore: %v", err)
	}

	meta := JobMeta{JobID: "job_1", Status: "queued", Source: "test", CreatedAt: nowRFC3339()}
	if err := store.CreateJob(meta); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := store.CreateJob(meta); err == nil {
		t.Fatal("duplicate CreateJob succeeded")
	}

	updated, err := store.UpdateJob("job_1", func(m *JobMeta) {
		m.Status = "running"
		m.StartedAt = nowRFC3339()
	})
	if err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if updated.Status != "running" {
		t.Fatalf("status = %q", updated.Status)
	}
	if _, err := store.UpdateJob("nope", nil); err == nil {
		t.Fatal("UpdateJob on missing job succeeded")
	}

	got, ok := store.GetJob("job_1")
	if !ok || got.Status != "running" {
		t.Fatalf("GetJob = %+v, ok=%v", got, ok)
	}
	if jobs := store.ListJobs(10); len(jobs) != 1 {
		t.Fatalf("ListJobs = %d entries", len(jobs))
	}
}

func TestMemoryStoreJobEvents(t *testing.T) {
	store, _ := NewMemoryFileStore("")
	_ = store.CreateJob(JobMeta{JobID: "job_1", Status: "queued", CreatedAt: nowRFC3339()})

	first, err := store.AppendJobEvent("job_1", "queue", "queued", nil)
	if err != nil {
		t.Fatalf("AppendJobEvent: %v", err)
	}
	second, _ := store.AppendJobEvent("job_1", "load", "loaded", map[string]any{"examples": 2})
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("seqs = %d, %d", first.Seq, second.Seq)
	}

	events := store.ListJobEvents("job_1", 0)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	events = store.ListJobEvents("job_1", first.Seq)
	if len(events) != 1 || events[0].Stage != "load" {
		t.Fatalf("cursor read = %+v", events)
	}
	if _, err := store.AppendJobEvent("nope", "x", "y", nil); err == nil {
		t.Fatal("event append on missing job succeeded")
	}
}

func TestMemoryStoreExamplesAndOverview(t *testing.T) {
	store, _ := NewMemoryFileStore("")
	_ = store.CreateJob(JobMeta{JobID: "job_1", Status: "queued", CreatedAt: "2026-01-01T00:00:00Z"})
	_, _ = store.UpdateJob("job_1", func(m *JobMeta) {
		m.Status = "done"
		m.FinishedAt = "2026-01-01T00:01:00Z"
	})

	examples := []tomi.Example{
		testExample("first_order_0", true),
		testExample("first_order_0", false),
		testExample("second_order_1", true),
	}
	if err := store.ReplaceExamples("job_1", examples); err != nil {
		t.Fatalf("ReplaceExamples: %v", err)
	}

	tomOnly := store.ListExamples("first_order_0", tomi.ConditionTom, 10)
	if len(tomOnly) != 1 || !tomOnly[0].RequiresTom {
		t.Fatalf("filtered read = %+v", tomOnly)
	}
	all := store.ListExamples("", "", 10)
	if len(all) != 3 {
		t.Fatalf("unfiltered read = %d entries", len(all))
	}
	if limited := store.ListExamples("", "", 2); len(limited) != 2 {
		t.Fatalf("limit ignored, got %d", len(limited))
	}
	// a huge limit must not panic the allocation
	if huge := store.ListExamples("", "", 1<<60); len(huge) != 3 {
		t.Fatalf("huge limit read = %d entries", len(huge))
	}

	overview := store.GetOverview()
	if overview.TotalJobs != 1 || overview.DoneJobs != 1 {
		t.Fatalf("job counts = %+v", overview)
	}
	if overview.TotalExamples != 3 || overview.TomExamples != 2 || overview.NoTomExamples != 1 {
		t.Fatalf("example counts = %+v", overview)
	}
	if overview.BaseTypeCount != 2 || overview.LatestJobID != "job_1" {
		t.Fatalf("overview = %+v", overview)
	}
}

func TestMemoryStoreSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := NewMemoryFileStore(path)
	if err != nil {
		t.Fatalf("NewMemoryFileStore: %v", err)
	}
	_ = store.CreateJob(JobMeta{JobID: "job_1", Status: "done", CreatedAt: nowRFC3339()})
	_, _ = store.AppendJobEvent("job_1", "done", "finished", nil)
	_ = store.ReplaceExamples("job_1", []tomi.Example{testExample("first_order_0", true)})

	reloaded, err := NewMemoryFileStore(path)
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	if _, ok := reloaded.GetJob("job_1"); !ok {
		t.Fatal("job lost across snapshot reload")
	}
	if events := reloaded.ListJobEvents("job_1", 0); len(events) != 1 {
		t.Fatalf("events lost: %d", len(events))
	}
	// seq continues after the highest persisted value
	event, err := reloaded.AppendJobEvent("job_1", "extra", "post reload", nil)
	if err != nil {
		t.Fatalf("AppendJobEvent after reload: %v", err)
	}
	if event.Seq != 2 {
		t.Fatalf("seq after reload = %d, want 2", event.Seq)
	}
	if examples := reloaded.ListExamples("", "", 10); len(examples) != 1 {
		t.Fatalf("examples lost: %d", len(examples))
	}
}
