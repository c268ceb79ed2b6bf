package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type API struct {
	auth  *Auth
	store Store
	jobs  JobService
	obs   *Observability
}

func NewAPI(auth *Auth, store Store, jobs JobService, obs *Observability) *API {
	return &API{
		auth:  auth,
		store: store,
		jobs:  jobs,
		obs:   obs,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)

	mux.HandleFunc("POST /api/v1/auth/login", a.auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", a.auth.HandleLogout)
	mux.HandleFunc("GET /api/v1/auth/me", a.auth.HandleMe)

	mux.Handle("POST /api/v1/admin/jobs", a.auth.RequireAdmin(http.HandlerFunc(a.handleAdminCreateJob)))
	mux.Handle("GET /api/v1/admin/jobs", a.auth.RequireAdmin(http.HandlerFunc(a.handleAdminListJobs)))
	mux.Handle("GET /api/v1/admin/jobs/{id}", a.auth.RequireAdmin(http.HandlerFunc(a.handleAdminGetJob)))
	mux.Handle("GET /api/v1/admin/jobs/{id}/events", a.auth.RequireAdmin(http.HandlerFunc(a.handleAdminJobEventsSSE)))
	mux.Handle("GET /api/v1/admin/metrics/overview", a.auth.RequireAdmin(http.HandlerFunc(a.handleAdminOverview)))

	mux.HandleFunc("GET /api/v1/datasets/summary", a.handleDatasetSummary)
	mux.HandleFunc("GET /api/v1/datasets/{base_type}/{condition}", a.handleDatasetExamples)

	wrapped := otelhttp.NewHandler(mux, "tomi-api-http")
	return withCORS(wrapped)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": nowRFC3339(),
	})
}

func (a *API) handleAdminCreateJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("tomi-api").Start(r.Context(), "admin.create_job")
	defer span.End()
	principal, _ := PrincipalFromContext(ctx)
	var req JobRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	span.SetAttributes(attribute.String("split", req.Split))
	meta, err := a.jobs.CreateJob(req, principal, "admin.manual")
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": meta.JobID,
		"status": meta.Status,
	})
}

func (a *API) handleAdminListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs": a.store.ListJobs(parseLimit(r, 100)),
	})
}

func (a *API) handleAdminGetJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}
	meta, ok := a.store.GetJob(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (a *API) handleAdminJobEventsSSE(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}
	if _, ok := a.store.GetJob(id); !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	cursor := parseCursor(r)
	send := func(events []JobEvent) {
		for _, event := range events {
			payload, marshalErr := json.Marshal(event)
			if marshalErr != nil {
				continue
			}
			fmt.Fprintf(w, "event: job_event\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			cursor = event.Seq
		}
		flusher.Flush()
	}
	send(a.store.ListJobEvents(id, cursor))

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			events := a.store.ListJobEvents(id, cursor)
			if len(events) > 0 {
				send(events)
			} else {
				_, _ = fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}

func (a *API) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.GetOverview())
}

// handleDatasetSummary reports the per-type tom/no_tom counts of the most
// recently finished extraction, falling back to the overview when none
// has completed yet.
func (a *API) handleDatasetSummary(w http.ResponseWriter, r *http.Request) {
	overview := a.store.GetOverview()
	if overview.LatestJobID != "" {
		if meta, ok := a.store.GetJob(overview.LatestJobID); ok {
			writeJSON(w, http.StatusOK, map[string]any{
				"job_id":        meta.JobID,
				"split":         meta.Request.Split,
				"finished_at":   meta.FinishedAt,
				"example_count": meta.ExampleCount,
				"summary":       meta.Summary,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":  "",
		"summary": map[string]any{},
	})
}

func (a *API) handleDatasetExamples(w http.ResponseWriter, r *http.Request) {
	baseType := strings.TrimSpace(r.PathValue("base_type"))
	condition := strings.TrimSpace(r.PathValue("condition"))
	if baseType == "" {
		writeError(w, http.StatusBadRequest, "missing base type")
		return
	}
	switch condition {
	case "tom", "no_tom":
	default:
		writeError(w, http.StatusBadRequest, "condition must be tom or no_tom")
		return
	}
	examples := a.store.ListExamples(baseType, condition, parseLimit(r, 50))
	writeJSON(w, http.StatusOK, map[string]any{
		"base_type": baseType,
		"condition": condition,
		"count":     len(examples),
		"examples":  examples,
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
