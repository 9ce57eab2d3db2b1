package studio

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrGenerationInFlight indicates that a submission is already running; the
// guard admits one at a time.
var ErrGenerationInFlight = errors.New("a generation is already in progress")

// flightGuard is a single-flight guard keyed by a logical active-submission
// token. Begin admits at most one holder; End releases only when called with
// the token Begin handed out, so a stale release cannot unlock a newer
// submission.
type flightGuard struct {
	mu     sync.Mutex
	active string
}

func (g *flightGuard) begin() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active != "" {
		return "", ErrGenerationInFlight
	}

	g.active = uuid.NewString()

	return g.active, nil
}

func (g *flightGuard) end(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active == token {
		g.active = ""
	}
}
