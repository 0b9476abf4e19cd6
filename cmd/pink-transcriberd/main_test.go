package main

import "testing"

func TestConfigPathFromEnv(t *testing.T) {
	env := map[string]string{
		"PINK_TRANSCRIBER_CONFIG": "  /etc/pink-transcriber/config.toml ",
	}
	getenv := func(key string) string { return env[key] }

	if got := configPathFromEnv(getenv); got != "/etc/pink-transcriber/config.toml" {
		t.Fatalf("configPathFromEnv = %q", got)
	}

	delete(env, "PINK_TRANSCRIBER_CONFIG")
	if got := configPathFromEnv(getenv); got != "" {
		t.Fatalf("expected empty path, got %q", got)
	}
}
