package main

import "strings"

// configPathFromEnv lets service units point the daemon at a config file
// without CLI flags. An empty value falls back to the default location.
func configPathFromEnv(getenv func(string) string) string {
	return strings.TrimSpace(getenv("PINK_TRANSCRIBER_CONFIG"))
}
