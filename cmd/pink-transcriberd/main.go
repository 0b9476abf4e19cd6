// Command pink-transcriberd runs the transcription daemon in the
// foreground without the CLI wrapper, for service managers that want a
// direct entrypoint.
package main

import (
	"context"
	"log"
	"os"

	"pinktranscriber/internal/config"
	"pinktranscriber/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(configPathFromEnv(os.Getenv))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("daemon: %v", err)
	}
}
