// Package probe checks username presence across a catalog of sites.
package probe

import (
	"context"
	"errors"

	"github.com/jonesrussell/sherlock-center/internal/domain"
)

// ErrUnavailable is returned when no probe capability is configured,
// typically because the site catalog could not be loaded.
var ErrUnavailable = errors.New("probe engine unavailable")

// Outcome is the result of probing a single site for a username.
type Outcome struct {
	SiteName     string
	URLMain      string
	URLUser      string
	Status       domain.OutcomeStatus
	HTTPStatus   *int
	QueryTime    *float64
	ErrorMessage *string
}

// Engine probes sites for a username, reporting each outcome as it
// arrives.
type Engine interface {
	// TotalSites returns the number of sites a run will probe.
	TotalSites() int
	// Run probes every catalog site for the username. The observe
	// callback fires once per site, from multiple goroutines. Run
	// returns once all sites are probed or ctx is cancelled.
	Run(ctx context.Context, username string, observe func(Outcome)) error
}

// Disabled is an Engine with no probing capability. Every run fails
// with ErrUnavailable.
type Disabled struct{}

func (Disabled) TotalSites() int { return 0 }

func (Disabled) Run(context.Context, string, func(Outcome)) error {
	return ErrUnavailable
}
