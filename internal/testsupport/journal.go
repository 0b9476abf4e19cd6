package testsupport

import (
	"testing"

	"pinktranscriber/internal/config"
	"pinktranscriber/internal/journal"
	"pinktranscriber/internal/logging"
)

// MustOpenJournal opens the request journal for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Journal {
	t.Helper()

	j, err := journal.Open(cfg.Journal.Path, logging.NewNop())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		j.Close()
	})
	return j
}
