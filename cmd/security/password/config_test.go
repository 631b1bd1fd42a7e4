package password

import (
	"os"
	"testing"
)

var envKeys = []string{
	"TASKER_PASSWORD_MIN_LEN",
	"TASKER_PASSWORD_MAX_LEN",
	"TASKER_PASSWORD_REJECT_VERY_WEAK",
	"TASKER_ARGON2_MEMORY_KIB",
	"TASKER_ARGON2_ITERATIONS",
	"TASKER_ARGON2_PARALLELISM",
	"TASKER_ARGON2_SALT_LEN",
	"TASKER_ARGON2_KEY_LEN",
	"TASKER_ARGON2_MAX_CONCURRENT",
}

// unsetAll removes every knob for the test and restores it afterwards.
func unsetAll(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestDefaultConfig_PolicyBounds(t *testing.T) {
	def := DefaultConfig()
	if def.Policy.MinLength != 6 || def.Policy.MaxLength != 128 {
		t.Fatalf("policy = %+v, want 6..128", def.Policy)
	}
	if def.MaxConcurrent < 2 || def.MaxConcurrent > 16 {
		t.Fatalf("MaxConcurrent = %d, want [2..16]", def.MaxConcurrent)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	unsetAll(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy != def.Policy {
		t.Fatalf("policy mismatch: %+v vs %+v", cfg.Policy, def.Policy)
	}
	if cfg.Params != def.Params {
		t.Fatalf("params mismatch: %+v vs %+v", cfg.Params, def.Params)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("TASKER_PASSWORD_MIN_LEN", "10")
	t.Setenv("TASKER_PASSWORD_MAX_LEN", "200")
	t.Setenv("TASKER_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("TASKER_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("TASKER_ARGON2_ITERATIONS", "4")
	t.Setenv("TASKER_ARGON2_PARALLELISM", "2")
	t.Setenv("TASKER_ARGON2_SALT_LEN", "24")
	t.Setenv("TASKER_ARGON2_KEY_LEN", "32")
	t.Setenv("TASKER_ARGON2_MAX_CONCURRENT", "3")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
	if cfg.MaxConcurrent != 3 {
		t.Fatalf("MaxConcurrent = %d", cfg.MaxConcurrent)
	}
}

func TestFromEnv_InvalidMinMax(t *testing.T) {
	unsetAll(t)
	t.Setenv("TASKER_PASSWORD_MIN_LEN", "20")
	t.Setenv("TASKER_PASSWORD_MAX_LEN", "10")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFromEnv_RejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"TASKER_ARGON2_ITERATIONS":         "zero",
		"TASKER_ARGON2_PARALLELISM":        "300",
		"TASKER_ARGON2_MEMORY_KIB":         "1",
		"TASKER_PASSWORD_REJECT_VERY_WEAK": "maybe",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			unsetAll(t)
			t.Setenv(key, val)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("%s=%q: expected error", key, val)
			}
		})
	}
}
