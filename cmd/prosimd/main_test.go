package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prosimgo/pkg/config"
	"prosimgo/pkg/prosim"
	"prosimgo/pkg/prosim/mocksdk"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prosim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, `
server:
    address: localhost:0
log:
    server:
        path: "`+filepath.ToSlash(filepath.Join(dir, "server.log"))+`"
        level: "debug"
    requests:
        path: "`+filepath.ToSlash(filepath.Join(dir, "requests.log"))+`"
        level: "info"
sim:
    provider: mock
    synchronous: true
    mock:
        connect_delay: 0s
`)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		t.Fatalf("run() failed: %v", err)
	}
}

func TestRun_NATSUnreachableIsFatal(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, `
server:
    address: localhost:0
log:
    server:
        path: "`+filepath.ToSlash(filepath.Join(dir, "server.log"))+`"
    requests:
        path: "`+filepath.ToSlash(filepath.Join(dir, "requests.log"))+`"
sim:
    provider: mock
nats:
    enabled: true
    url: nats://127.0.0.1:1
`)

	err := run(context.Background(), cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup checks failed")
}

func TestInitializeSDK_FallsBackToMock(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sim.SDKPath = filepath.Join(t.TempDir(), "ProSimSDK.dll")

	backend, err := initializeSDK(cfg)
	require.NoError(t, err)
	defer backend.release()

	_, isMock := backend.sdk.(*mocksdk.SDK)
	assert.True(t, isMock)
	assert.True(t, errors.Is(backend.fallback, prosim.ErrSDKLoad), "fallback = %v", backend.fallback)
}

func TestNewMockSDK_Catalog(t *testing.T) {
	catalog := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(`
datarefs:
  - name: aircraft.flaps
    can_read: true
    can_write: true
    data_type: System.Int32
    value: 0
`), 0o644))

	sdk, err := newMockSDK(config.MockSimConfig{Catalog: catalog})
	require.NoError(t, err)
	require.NoError(t, sdk.Connect("localhost", true))
	descs, err := sdk.DataRefDescriptions()
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "aircraft.flaps", descs[0].Name)

	_, err = newMockSDK(config.MockSimConfig{Catalog: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestSupervisorConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	sc := supervisorConfig(cfg)
	assert.Equal(t, cfg.Sim.Host, sc.Host)
	assert.Equal(t, 5*time.Second, sc.RetryInterval)
	require.Len(t, sc.Watch, 2)
	assert.Equal(t, 100*time.Millisecond, sc.Watch[0].Interval)
	assert.Zero(t, sc.Watch[1].Interval)
}

func TestStartSupervisor_StopWaitsForRun(t *testing.T) {
	sdk := mocksdk.New(mocksdk.DefaultConfig())
	client := prosim.NewClient(sdk)
	sup := prosim.NewSupervisor(client, prosim.SupervisorConfig{
		Host:          "localhost",
		RetryInterval: 5 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
	})

	stop := startSupervisor(context.Background(), sup)
	deadline := time.Now().Add(2 * time.Second)
	for client.State() != prosim.StateConnected {
		require.True(t, time.Now().Before(deadline), "supervisor never connected")
		time.Sleep(5 * time.Millisecond)
	}

	stop()
	require.NoError(t, client.Close())

	// A live supervisor would have reconnected within a few polls.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, prosim.StateDisconnected, client.State())
}
