package dispatch

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kilianp07/vpp/core/dispatch/logging"
)

// NewLogHandler serves the dispatch audit trail on GET /api/dispatch/logs.
// A non-empty token requires "Authorization: Bearer <token>".
//
// Query parameters:
//
//	start, end  RFC3339 bounds on the dispatch time
//	plant_id    dispatches the plant took part in
//	unmet       "true" keeps only dispatches that left demand unmet
func NewLogHandler(store logging.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		params := r.URL.Query()
		q, err := parseLogQuery(params)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		unmetOnly, err := parseBool(params, "unmet")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]logging.LogRecord, 0, len(records))
		for _, rec := range records {
			if unmetOnly && rec.Allocation.UnmetDemand <= 0 {
				continue
			}
			out = append(out, rec)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// authorized compares the bearer token in constant time.
func authorized(r *http.Request, token string) bool {
	got := []byte(r.Header.Get("Authorization"))
	want := []byte("Bearer " + token)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func parseLogQuery(params url.Values) (logging.LogQuery, error) {
	var q logging.LogQuery
	var err error
	if q.Start, err = parseTime(params, "start"); err != nil {
		return q, err
	}
	if q.End, err = parseTime(params, "end"); err != nil {
		return q, err
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return q, fmt.Errorf("end must not be before start")
	}
	if s := params.Get("plant_id"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil || id <= 0 {
			return q, fmt.Errorf("plant_id must be a positive integer")
		}
		q.PlantID = id
	}
	return q, nil
}

func parseTime(params url.Values, key string) (time.Time, error) {
	s := params.Get(key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC3339 timestamp", key)
	}
	return t, nil
}

func parseBool(params url.Values, key string) (bool, error) {
	s := params.Get(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}
