package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftsync/internal/fleet"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

type callLog struct {
	mu    sync.Mutex
	calls []recorded
}

func (l *callLog) all() []recorded {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recorded(nil), l.calls...)
}

func newServer(t *testing.T, status int, reply string) (*Client, *callLog) {
	t.Helper()
	log := &callLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path}
		if r.Body != nil && r.ContentLength != 0 {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		log.mu.Lock()
		log.calls = append(log.calls, rec)
		log.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", WithTimeout(time.Second)), log
}

func TestClient_RequestHallCall(t *testing.T) {
	c, calls := newServer(t, http.StatusOK, `{"message":"Request '4U' is successfully added to the system.","success":true}`)

	resp, err := c.RequestHallCall(context.Background(), 4, fleet.Up)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "4U")

	require.Len(t, calls.all(), 1)
	got := calls.all()[0]
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/request", got.path)
	assert.Equal(t, map[string]any{"floor": float64(4), "direction": "U"}, got.body)
}

func TestClient_AddStop(t *testing.T) {
	c, calls := newServer(t, http.StatusOK, `{"message":"ok","success":true}`)

	_, err := c.AddStop(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, "/api/stop", calls.all()[0].path)
	assert.Equal(t, map[string]any{"elevator_id": float64(1), "floor": float64(7)}, calls.all()[0].body)
}

func TestClient_InitializeBuilding(t *testing.T) {
	c, calls := newServer(t, http.StatusOK, `{"message":"Building initialized","success":true}`)

	_, err := c.InitializeBuilding(context.Background(), 10, 3)
	require.NoError(t, err)
	assert.Equal(t, "/api/building", calls.all()[0].path)
	assert.Equal(t, map[string]any{"total_floors": float64(10), "total_elevators": float64(3)}, calls.all()[0].body)
}

func TestClient_Status(t *testing.T) {
	c, calls := newServer(t, http.StatusOK, `{
		"total_floors": 6,
		"elevators": [
			{"elevator_id": 0, "current_floor": 2.5, "direction": "U", "is_door_open": false},
			{"elevator_id": 1, "current_floor": 0, "direction": "IDLE", "is_door_open": true}
		]
	}`)

	snap, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, calls.all()[0].method)
	assert.Equal(t, "/api/status", calls.all()[0].path)
	assert.Equal(t, 6, snap.TotalFloors)
	require.Len(t, snap.Elevators, 2)
	assert.Equal(t, 2, snap.Elevators[0].Position)
	assert.True(t, snap.Elevators[1].DoorOpen)
	assert.False(t, snap.Timestamp.IsZero())
}

func TestClient_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		reply      string
		wantDetail string
	}{
		{"string detail", http.StatusBadRequest, `{"detail":"Floor must be between 0 and 5"}`, "Floor must be between 0 and 5"},
		{"list detail", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","floor"]}]}`, `[{"loc":["body","floor"]}]`},
		{"plain body", http.StatusServiceUnavailable, `down`, "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newServer(t, tt.status, tt.reply)

			_, err := c.AddStop(context.Background(), 0, 9)
			require.Error(t, err)
			assert.True(t, IsRejected(err))

			var re *RejectedError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.status, re.StatusCode)
			assert.Equal(t, tt.wantDetail, re.Detail)
			assert.Equal(t, "/stop", re.Path)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).RequestHallCall(context.Background(), 1, fleet.Down)
	require.Error(t, err)
	assert.False(t, IsRejected(err))
}

func TestClient_BadStatusBody(t *testing.T) {
	c, _ := newServer(t, http.StatusOK, `{"elevators":[{"elevator_id":0,"direction":"X"}]}`)

	_, err := c.Status(context.Background())
	assert.True(t, fleet.IsParse(err))
}

func TestNew_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("").baseURL)
}
