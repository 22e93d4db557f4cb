package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.value)
			} else {
				_ = os.Unsetenv(tt.key)
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{name: "valid duration", value: "45s", def: time.Second, expected: 45 * time.Second},
		{name: "invalid duration falls back", value: "soon", def: time.Minute, expected: time.Minute},
		{name: "unset falls back", value: "", def: 2 * time.Hour, expected: 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := mustDuration("TEST_DURATION", tt.def); got != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      bool
		expected bool
	}{
		{name: "true", value: "true", def: false, expected: true},
		{name: "numeric false", value: "0", def: true, expected: false},
		{name: "garbage falls back", value: "maybe", def: true, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if got := mustBool("TEST_BOOL", tt.def); got != tt.expected {
				t.Errorf("mustBool() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want int
	}{
		{1, 4, 24, 4},
		{16, 4, 24, 16},
		{99, 2, 24, 24},
	}
	for _, tt := range tests {
		if got := clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(` a.example, "b.example" ,, 'c' `)
	want := []string{"a.example", "b.example", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitAndTrim() = %v, want %v", got, want)
	}
	if splitAndTrim("") != nil {
		t.Errorf("splitAndTrim(\"\") should be nil")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("LINKLOOM_DATABASE_URL", "/tmp/linkloom.db")
	t.Setenv("LINKLOOM_SECRET_KEY", "s3cret")
	t.Setenv("LINKLOOM_IMPORT_WORKERS", "100")
	t.Setenv("LINKLOOM_SYNC_CONFIRM_TTL_SECONDS", "60")

	cfg := Load()

	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("DatabaseDriver = %q, want sqlite", cfg.DatabaseDriver)
	}
	if cfg.ImportWorkers != 24 {
		t.Errorf("ImportWorkers = %d, want clamped 24", cfg.ImportWorkers)
	}
	if cfg.SyncConfirmTTL != time.Minute {
		t.Errorf("SyncConfirmTTL = %v, want 1m", cfg.SyncConfirmTTL)
	}
	if cfg.DeadLinkSweepLimit != 50 {
		t.Errorf("DeadLinkSweepLimit = %d, want 50", cfg.DeadLinkSweepLimit)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("LINKLOOM_DATABASE_URL", "x")
	t.Setenv("LINKLOOM_SECRET_KEY", "k")
	t.Setenv("LINKLOOM_DATABASE_DRIVER", "mysql")

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Load() should have panicked on unknown driver")
		}
	}()
	Load()
}

func TestLoadDatabaseSkipsSecret(t *testing.T) {
	t.Setenv("LINKLOOM_DATABASE_URL", "postgres://localhost/linkloom")
	t.Setenv("LINKLOOM_DATABASE_DRIVER", "Postgres")
	t.Setenv("LINKLOOM_SECRET_KEY", "")

	cfg := LoadDatabase()

	if cfg.DatabaseDriver != "postgres" {
		t.Errorf("DatabaseDriver = %q, want postgres", cfg.DatabaseDriver)
	}
	if cfg.SecretKey != "" {
		t.Errorf("SecretKey should not be loaded")
	}
}
