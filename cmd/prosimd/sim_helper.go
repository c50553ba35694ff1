package main

import (
	"fmt"
	"log/slog"
	"strings"

	"prosimgo/pkg/config"
	"prosimgo/pkg/prosim"
	"prosimgo/pkg/prosim/comsdk"
	"prosimgo/pkg/prosim/mocksdk"
)

type simBackend struct {
	sdk      prosim.SDK
	release  func()
	fallback error // why the ProSim SDK is not in use
}

func initializeSDK(cfg *config.Config) (*simBackend, error) {
	if strings.EqualFold(cfg.Sim.Provider, "mock") {
		slog.Info("Sim Source: Mock")
		mock, err := newMockSDK(cfg.Sim.Mock)
		if err != nil {
			return nil, err
		}
		return &simBackend{sdk: mock, release: func() {}}, nil
	}

	slog.Info("Sim Source: ProSim SDK")
	sdk, err := loadComSDK(cfg.Sim.SDKPath)
	if err == nil {
		return &simBackend{sdk: sdk, release: sdk.Release}, nil
	}

	slog.Error("Failed to load ProSim SDK, falling back to Mock", "error", err)
	mock, mErr := newMockSDK(cfg.Sim.Mock)
	if mErr != nil {
		return nil, mErr
	}
	return &simBackend{sdk: mock, release: func() {}, fallback: err}, nil
}

func loadComSDK(path string) (*comsdk.SDK, error) {
	if path == "" {
		found, err := comsdk.FindSDK()
		if err != nil {
			return nil, err
		}
		path = found
	}
	return comsdk.Load(path)
}

func newMockSDK(mc config.MockSimConfig) (*mocksdk.SDK, error) {
	cfg := mocksdk.DefaultConfig()
	cfg.ConnectDelay = mc.ConnectDelay.Std()
	if mc.Catalog != "" {
		entries, err := mocksdk.LoadCatalog(mc.Catalog)
		if err != nil {
			return nil, fmt.Errorf("mock catalog: %w", err)
		}
		cfg.Catalog = entries
	}
	return mocksdk.New(cfg), nil
}
