package main

import (
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SHOPIFY_SHOP", "SHOPIFY_USERNAME", "SHOPIFY_PASSWORD",
		"DB_HOST", "DB_USER", "DB_PASSWORD", "DB_NAME", "REDIS_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestRun_RejectsUnknownMode(t *testing.T) {
	clearEnv(t)

	if code := run([]string{"-mode", "hourly"}); code != 2 {
		t.Errorf("run(-mode hourly) = %d, want 2", code)
	}
}

func TestRun_RejectsUnknownFlag(t *testing.T) {
	clearEnv(t)

	if code := run([]string{"-frequency", "daily"}); code != 2 {
		t.Errorf("run(-frequency daily) = %d, want 2", code)
	}
}

func TestRun_FailsWithoutConfiguration(t *testing.T) {
	clearEnv(t)

	if code := run([]string{"-mode", "daily"}); code != 1 {
		t.Errorf("run() without credentials = %d, want 1", code)
	}
}
