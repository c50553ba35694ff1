package comsdk

import (
	"errors"
	"strings"
	"time"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-ole/go-ole"

	"prosimgo/pkg/prosim"
)

func TestLoad_MissingAssembly(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "ProSimSDK.dll"))
	if !errors.Is(err, prosim.ErrSDKLoad) {
		t.Fatalf("expected ErrSDKLoad, got %v", err)
	}
}

func TestFindSDK_EnvOverride(t *testing.T) {
	dll := filepath.Join(t.TempDir(), "ProSimSDK.dll")
	if err := os.WriteFile(dll, []byte("MZ"), 0o644); err != nil {
		t.Fatalf("failed to create fake assembly: %v", err)
	}
	t.Setenv("PROSIM_SDK_PATH", dll)

	got, err := FindSDK()
	if err != nil {
		t.Fatalf("FindSDK failed: %v", err)
	}
	if got != dll {
		t.Errorf("expected %s, got %s", dll, got)
	}
}

func TestGoValue(t *testing.T) {
	tests := []struct {
		name string
		v    ole.VARIANT
		want any
	}{
		{"Int32", ole.NewVariant(ole.VT_I4, 32), int32(32)},
		{"Int16", ole.NewVariant(ole.VT_I2, 7), int32(7)},
		{"Int64", ole.NewVariant(ole.VT_I8, 1<<40), int64(1 << 40)},
		{"Float64", ole.NewVariant(ole.VT_R8, int64(math.Float64bits(2.5))), 2.5},
		{"BoolTrue", ole.NewVariant(ole.VT_BOOL, -1), true},
		{"BoolFalse", ole.NewVariant(ole.VT_BOOL, 0), false},
		{"Empty", ole.NewVariant(ole.VT_EMPTY, 0), nil},
		{"Uint64", ole.NewVariant(ole.VT_UI8, 1<<40), int64(1 << 40)},
		{"Uint64AboveInt64", ole.NewVariant(ole.VT_UI8, -1), float64(math.MaxUint64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := goValue(&tt.v); got != tt.want {
				t.Errorf("goValue() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}

	if goValue(nil) != nil {
		t.Error("nil variant should convert to nil")
	}
}

func TestSafeCall_RecoversPanic(t *testing.T) {
	err := safeCall(func() error { panic("unknown type") })
	if err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Fatalf("expected panic turned into error, got %v", err)
	}

	want := errors.New("boom")
	if err := safeCall(func() error { return want }); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestSubscribe_RejectsOversizedInterval(t *testing.T) {
	var s SDK
	_, err := s.Subscribe("aircraft.altitude", prosim.MaxInterval+time.Millisecond, nil)
	if !errors.Is(err, prosim.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}
