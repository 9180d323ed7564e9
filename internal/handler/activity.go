package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/service"
)

type activityHandler struct {
	activityService *service.ActivityService
}

func NewActivityHandler(activityService *service.ActivityService) *activityHandler {
	return &activityHandler{activityService: activityService}
}

func (h *activityHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := activityFilter(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	h.list(w, r, filter)
}

// ListForUser lists entries that concern the user in the path.
func (h *activityHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	filter, err := activityFilter(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	filter.UserID = r.PathValue("id")
	h.list(w, r, filter)
}

func (h *activityHandler) list(w http.ResponseWriter, r *http.Request, filter model.ActivityFilter) {
	entries, total, err := h.activityService.List(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activities": entries,
		"total":      total,
	})
}

func (h *activityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.activityService.Delete(r.Context(), currentUser(r), r.PathValue("id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *activityHandler) Purge(w http.ResponseWriter, r *http.Request) {
	n, err := h.activityService.Purge(r.Context(), currentUser(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func activityFilter(r *http.Request) (model.ActivityFilter, error) {
	q := r.URL.Query()
	filter := model.ActivityFilter{
		Username: q.Get("username"),
		Details:  q.Get("details"),
		Category: q.Get("category"),
	}

	var err error
	if v := q.Get("limit"); v != "" {
		filter.Limit, err = strconv.Atoi(v)
		if err != nil {
			return filter, errBadRequest("limit must be an integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, err = strconv.Atoi(v)
		if err != nil {
			return filter, errBadRequest("offset must be an integer")
		}
	}

	filter.From, err = parseDate(q.Get("from"), false)
	if err != nil {
		return filter, errBadRequest("from must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	filter.To, err = parseDate(q.Get("to"), true)
	if err != nil {
		return filter, errBadRequest("to must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}

	return filter, nil
}

// parseDate accepts RFC 3339 or a plain date. A plain end date covers the whole day.
func parseDate(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, v)
	if err == nil {
		return &t, nil
	}

	t, err = time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
