package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prosimgo/pkg/prosim"
	"prosimgo/pkg/prosim/mocksdk"
)

const (
	altitude = "aircraft.altitude"
	isfdApp  = "system.switches.S_MIP_ISFD_APP"
)

type testBridge struct {
	client *prosim.Client
	sdk    *mocksdk.SDK
	hub    *Hub
	srv    *http.Server
}

func newTestBridge(t *testing.T, connect bool) *testBridge {
	t.Helper()
	hub := NewHub()
	sdk := mocksdk.New(mocksdk.DefaultConfig())
	c := prosim.NewClient(sdk, prosim.WithChangeObserver(hub.Broadcast))
	if connect {
		require.NoError(t, c.Connect(context.Background(), "localhost", true))
	}
	t.Cleanup(func() {
		hub.Close()
		_ = c.Close()
	})
	return &testBridge{
		client: c,
		sdk:    sdk,
		hub:    hub,
		srv:    NewServer("localhost:0", NewDataRefHandler(c), hub, func() {}),
	}
}

func (b *testBridge) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	b.srv.Handler.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: %q", prosim.ErrUnknownDataRef, "x"), http.StatusNotFound},
		{prosim.ErrNotWritable, http.StatusForbidden},
		{prosim.ErrTypeCoercion, http.StatusBadRequest},
		{prosim.ErrInvalidInterval, http.StatusBadRequest},
		{prosim.ErrNotActive, http.StatusConflict},
		{prosim.ErrNotConnected, http.StatusServiceUnavailable},
		{errors.New("com failure"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestHealthAndVersion(t *testing.T) {
	b := newTestBridge(t, false)

	rr := b.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	rr = b.do(t, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"version"`)
}

func TestDisconnectedBridge(t *testing.T) {
	b := newTestBridge(t, false)

	rr := b.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var st StateResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&st))
	assert.Equal(t, prosim.StateDisconnected, st.State)
	assert.Zero(t, st.DataRefs)

	assert.Equal(t, http.StatusServiceUnavailable, b.do(t, http.MethodGet, "/api/info", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, b.do(t, http.MethodGet, "/api/datarefs?live=1", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, b.do(t, http.MethodPost, "/api/datarefs/refresh", nil).Code)
	assert.Equal(t, http.StatusNotFound, b.do(t, http.MethodGet, "/api/datarefs/"+altitude, nil).Code)
}

func TestDataRefDatabase(t *testing.T) {
	b := newTestBridge(t, true)

	rr := b.do(t, http.MethodGet, "/api/datarefs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var refs []map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&refs))
	require.Len(t, refs, len(mocksdk.DefaultCatalog()))
	assert.Contains(t, refs[0], "read_access")
	assert.Contains(t, refs[0], "write_access")

	rr = b.do(t, http.MethodGet, "/api/datarefs?live=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = b.do(t, http.MethodGet, "/api/datarefs/"+isfdApp, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var d map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&d))
	assert.Equal(t, "int32", d["data_type"])
	assert.Equal(t, true, d["write_access"])

	assert.Equal(t, http.StatusNotFound, b.do(t, http.MethodGet, "/api/datarefs/aircraft.flaps", nil).Code)
	assert.Equal(t, http.StatusOK, b.do(t, http.MethodPost, "/api/datarefs/refresh", nil).Code)

	rr = b.do(t, http.MethodGet, "/api/info", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Mock Simulator")
}

func TestActivateAndRead(t *testing.T) {
	b := newTestBridge(t, true)

	assert.Equal(t, http.StatusConflict, b.do(t, http.MethodGet, "/api/datarefs/"+altitude+"/value", nil).Code)

	rr := b.do(t, http.MethodPost, "/api/datarefs/"+altitude+"/activate", ActivateRequest{IntervalMS: 20})
	require.Equal(t, http.StatusOK, rr.Code)
	var d map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&d))
	assert.Equal(t, true, d["active"])
	assert.EqualValues(t, 20, d["interval"])

	deadline := time.Now().Add(2 * time.Second)
	var val ValueResponse
	for time.Now().Before(deadline) {
		rr = b.do(t, http.MethodGet, "/api/datarefs/"+altitude+"/value", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&val))
		if val.Value != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 285.0, val.Value)
	assert.Equal(t, prosim.TypeFloat64, val.Type)

	assert.Equal(t, http.StatusOK, b.do(t, http.MethodPost, "/api/datarefs/"+altitude+"/deactivate", nil).Code)
	assert.Equal(t, http.StatusConflict, b.do(t, http.MethodPost, "/api/datarefs/"+altitude+"/deactivate", nil).Code)
}

func TestActivateRejectsNegativeInterval(t *testing.T) {
	b := newTestBridge(t, true)

	rr := b.do(t, http.MethodPost, "/api/datarefs/"+altitude+"/activate", ActivateRequest{IntervalMS: -5})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	b.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/datarefs/"+altitude+"/activate", bytes.NewBufferString("{bad")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetValue(t *testing.T) {
	b := newTestBridge(t, true)

	// Empty body activates write-only.
	require.Equal(t, http.StatusOK, b.do(t, http.MethodPost, "/api/datarefs/"+isfdApp+"/activate", nil).Code)

	rr := b.do(t, http.MethodPut, "/api/datarefs/"+isfdApp+"/value", ValueRequest{Value: 1})
	require.Equal(t, http.StatusNoContent, rr.Code)
	v, err := b.sdk.Get(isfdApp)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	tests := []struct {
		name string
		ref  string
		body any
		want int
	}{
		{"ReadOnly", altitude, ValueRequest{Value: 300.0}, http.StatusForbidden},
		{"Unknown", "aircraft.flaps", ValueRequest{Value: 1}, http.StatusNotFound},
		{"BadType", isfdApp, ValueRequest{Value: "on"}, http.StatusBadRequest},
		{"Fraction", isfdApp, ValueRequest{Value: 1.5}, http.StatusBadRequest},
		{"NotActive", "system.switches.S_OH_NAV_LIGHTS", ValueRequest{Value: 1}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := b.do(t, http.MethodPut, "/api/datarefs/"+tt.ref+"/value", tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestShutdownEndpoint(t *testing.T) {
	called := make(chan struct{})
	srv := NewServer("localhost:0", NewDataRefHandler(prosim.NewClient(mocksdk.New(mocksdk.DefaultConfig()))), nil, func() { close(called) })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/shutdown", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Error("shutdown func was not called")
	}
}

func TestListenLimitsConnections(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", 2)
	require.NoError(t, err)
	defer ln.Close()
	assert.NotEmpty(t, ln.Addr().String())
}
