// Command hrflow runs the HR policy workflow API, the agent worker and the
// HITL expiry sweeper.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
