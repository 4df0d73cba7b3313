package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/quizdeck/quizdeck/pkg/httputil"
)

// Handlers exposes the audit trail query API for the admin surface
type Handlers struct {
	store *Store
}

// NewHandlers creates audit query handlers
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers the audit routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/events", h.ListEvents).Methods("GET")
}

// ListEvents handles GET /audit/events with query-parameter filters
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if events == nil {
		events = []*Event{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func parseFilter(r *http.Request) SearchFilter {
	query := r.URL.Query()
	filter := SearchFilter{}

	if startStr := query.Get("start_time"); startStr != "" {
		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			filter.StartTime = &t
		}
	}
	if endStr := query.Get("end_time"); endStr != "" {
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			filter.EndTime = &t
		}
	}

	filter.UserID = query.Get("user_id")
	filter.TenantID = query.Get("tenant_id")
	filter.ResourceType = ResourceType(query.Get("resource_type"))
	filter.ResourceID = query.Get("resource_id")

	for _, eventType := range query["event_type"] {
		filter.EventTypes = append(filter.EventTypes, EventType(eventType))
	}
	if statusStr := query.Get("status"); statusStr != "" {
		status := EventStatus(statusStr)
		filter.Status = &status
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if filter.Limit == 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}

	return filter
}
