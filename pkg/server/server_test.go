package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bscwallet/pkg/events"
	"bscwallet/pkg/models"
	"bscwallet/pkg/task"
	"bscwallet/pkg/watcher"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	release chan struct{}
}

func (c stubChecker) Check(ctx context.Context, addresses []string, progress func(string)) (models.BalanceReport, error) {
	if c.release != nil {
		<-c.release
	}
	progress("Checking wallet 1/1: " + addresses[0])
	return models.BalanceReport{
		Checked: len(addresses),
		Totals:  models.BalanceTotals{Native: big.NewFloat(2)},
	}, nil
}

func newTestServer(t *testing.T, checker watcher.Checker) (*Server, *task.Manager) {
	bus := events.NewBus()
	tasks := task.NewManager(context.Background(), bus)
	w := watcher.NewWatcher(checker, tasks, []string{"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"}, 0)
	return NewServer(bus, tasks, w), tasks
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t, stubChecker{})

	req, _ := http.NewRequest("GET", "/api/status", nil)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp, "tasks")
	assert.Contains(t, resp, "state")
	assert.NotContains(t, resp, "balances")
	assert.Equal(t, "idle", resp["state"].(map[string]any)["supply"])
}

func TestHandleBalances_StartsTask(t *testing.T) {
	s, tasks := newTestServer(t, stubChecker{})

	body := bytes.NewBufferString(`{"addresses":["0x00000000000000000000000000000000000000b2"]}`)
	req, _ := http.NewRequest("POST", "/api/balances", body)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	tk, ok := tasks.Get(resp["id"])
	require.True(t, ok)
	_, err := tk.Wait()
	require.NoError(t, err)

	req, _ = http.NewRequest("GET", "/api/tasks/"+tk.ID, nil)
	rr = httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	var info map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, "done", info["state"])
	assert.Equal(t, "balance", info["op"])

	req, _ = http.NewRequest("GET", "/api/status", nil)
	rr = httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	assert.Contains(t, rr.Body.String(), `"balances"`)
}

func TestHandleBalances_Busy(t *testing.T) {
	release := make(chan struct{})
	s, _ := newTestServer(t, stubChecker{release: release})
	defer close(release)

	post := func() int {
		req, _ := http.NewRequest("POST", "/api/balances", nil)
		rr := httptest.NewRecorder()
		s.mux.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusAccepted, post())
	assert.Equal(t, http.StatusConflict, post())
}

func TestHandleBalances_BadBody(t *testing.T) {
	s, _ := newTestServer(t, stubChecker{})
	req, _ := http.NewRequest("POST", "/api/balances", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleTask_NotFound(t *testing.T) {
	s, _ := newTestServer(t, stubChecker{})
	req, _ := http.NewRequest("GET", "/api/tasks/nope", nil)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleWS(t *testing.T) {
	s, _ := newTestServer(t, stubChecker{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.listenToBus(ctx)

	server := httptest.NewServer(s.mux)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	var msg map[string]any
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "initial", msg["type"])

	// give the bus listener time to subscribe
	time.Sleep(20 * time.Millisecond)
	s.bus.Publish(events.Event{TaskID: "t1", Op: "supply", Type: events.EventProgress, Message: "Transferring to wallet 1/1: 0xabc"})

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, "t1", ev.TaskID)
	assert.Equal(t, events.EventProgress, ev.Type)
}
