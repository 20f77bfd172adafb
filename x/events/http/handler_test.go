package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/clones-ai/factoryvault/x/events"
)

func newTestHandler(t *testing.T) (*events.Bus, *mux.Router) {
	t.Helper()

	bus := events.NewBus(zerolog.New(io.Discard))
	r := mux.NewRouter()
	NewHandler(bus, zerolog.New(io.Discard)).RegisterMux(r)
	return bus, r
}

func TestHandler_RecentEvents(t *testing.T) {
	t.Parallel()
	bus, r := newTestHandler(t)

	for i := 0; i < 5; i++ {
		bus.Publish(events.TypePoolCreated, nil)
	}

	req := httptest.NewRequest(http.MethodGet, routeRecentEvents+"?limit=3", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count   int             `json:"count"`
		Events  []events.Event  `json:"events"`
		Dropped json.RawMessage `json:"dropped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Count)
	require.Len(t, resp.Events, 3)
}

func TestHandler_RecentEventsBadLimit(t *testing.T) {
	t.Parallel()
	_, r := newTestHandler(t)

	for _, limit := range []string{"0", "-1", "abc"} {
		req := httptest.NewRequest(http.MethodGet, routeRecentEvents+"?limit="+limit, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}
