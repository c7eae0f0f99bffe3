package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/crewnotify/pkg/audit"
	"github.com/dmitrymomot/crewnotify/pkg/channel"
	"github.com/dmitrymomot/crewnotify/pkg/email"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
	"github.com/dmitrymomot/crewnotify/pkg/notifications"
)

type errorResponse struct {
	Error string `json:"error"`
}

type outcomeResponse struct {
	Outcome string `json:"outcome"`
}

type checkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type listResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (a *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "failed to write response", logger.Error(err))
	}
}

func (a *API) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	a.writeJSON(ctx, w, status, errorResponse{Error: err.Error()})
}

// deliver runs the worker for one record. Unknown records are 404 and not
// worth retrying; any other error is 503 so the caller retries.
func (a *API) deliver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	outcome, err := a.deliverer.Deliver(ctx, id)
	switch {
	case err == nil:
		a.writeJSON(ctx, w, http.StatusOK, outcomeResponse{Outcome: string(outcome)})
	case errors.Is(err, notifications.ErrNotFound):
		a.writeError(ctx, w, http.StatusNotFound, err)
	default:
		a.logger.LogAttrs(ctx, slog.LevelError, "delivery trigger failed", logger.RecordID(id), logger.Error(err))
		a.writeError(ctx, w, http.StatusServiceUnavailable, err)
	}
}

func (a *API) checkEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var s email.Settings
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		a.writeError(ctx, w, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidBody, err))
		return
	}

	if a.cfg.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.CheckTimeout)
		defer cancel()
	}

	res, err := a.check(ctx, s)
	switch {
	case errors.Is(err, email.ErrInvalidSettings):
		a.writeError(r.Context(), w, http.StatusBadRequest, err)
	case err != nil || !res.Success:
		a.writeJSON(r.Context(), w, http.StatusBadGateway, checkResponse{Success: false, Message: res.Message})
	default:
		a.writeJSON(r.Context(), w, http.StatusOK, checkResponse{Success: true, Message: res.Message})
	}
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit, offset, err := a.page(q)
	if err != nil {
		a.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	f := notifications.Filter{
		UserID:      q.Get("user_id"),
		State:       notifications.State(q.Get("state")),
		TemplateKey: q.Get("template"),
		Channel:     channel.Channel(q.Get("channel")),
		Limit:       limit,
		Offset:      offset,
	}

	recs, err := a.records.List(ctx, f)
	if err != nil {
		a.logger.LogAttrs(ctx, slog.LevelError, "failed to list notifications", logger.Error(err))
		a.writeError(ctx, w, http.StatusServiceUnavailable, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, listResponse[notifications.Record]{Items: recs, Limit: limit, Offset: offset})
}

func (a *API) listAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit, offset, err := a.page(q)
	if err != nil {
		a.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	since, err := timeParam(q, "since")
	if err != nil {
		a.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	until, err := timeParam(q, "until")
	if err != nil {
		a.writeError(ctx, w, http.StatusBadRequest, err)
		return
	}
	c := audit.Criteria{
		Action:     q.Get("action"),
		Resource:   q.Get("resource"),
		ResourceID: q.Get("resource_id"),
		Result:     audit.Result(q.Get("result")),
		Since:      since,
		Until:      until,
		Limit:      limit,
		Offset:     offset,
	}

	entries, err := a.auditLog.Find(ctx, c)
	if err != nil {
		a.logger.LogAttrs(ctx, slog.LevelError, "failed to read audit log", logger.Error(err))
		a.writeError(ctx, w, http.StatusServiceUnavailable, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, listResponse[audit.Entry]{Items: entries, Limit: limit, Offset: offset})
}

func (a *API) live(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) readiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	checks := make(map[string]string, len(a.ready))
	for _, c := range a.ready {
		if err := c.fn(ctx); err != nil {
			a.logger.LogAttrs(ctx, slog.LevelWarn, "readiness check failed",
				slog.String("dependency", c.name),
				logger.Error(err),
			)
			checks[c.name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.name] = "ok"
	}
	a.writeJSON(ctx, w, status, map[string]any{"ready": status == http.StatusOK, "checks": checks})
}

func (a *API) page(q url.Values) (int, int, error) {
	limit := a.cfg.ListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("%w: limit", ErrInvalidQuery)
		}
		limit = n
	}
	if a.cfg.MaxListLimit > 0 {
		limit = min(limit, a.cfg.MaxListLimit)
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("%w: offset", ErrInvalidQuery)
		}
		offset = n
	}
	return limit, offset, nil
}

func timeParam(q url.Values, name string) (time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339", ErrInvalidQuery, name)
	}
	return t, nil
}
