// Package dump writes the final text summary of a finished simulation
// run, the one persistence surface spec.md allows beyond the in-memory
// tick pipeline.
package dump

import (
	"bufio"
	"fmt"
	"os"

	"swarmring/internal/agent"
)

// WriteFinalPositions writes one "x,y,heading" line per agent to path,
// truncating any existing file.
func WriteFinalPositions(path string, agents []agent.Agent) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dump final positions: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, a := range agents {
		if _, err := fmt.Fprintf(w, "%d,%d,%d\n", a.X, a.Y, a.Heading); err != nil {
			return fmt.Errorf("dump final positions: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("dump final positions: %w", err)
	}
	return nil
}
