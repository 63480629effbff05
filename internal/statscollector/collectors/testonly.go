package collectors

import (
	"github.com/G-Research/statscollector/internal/statscollector/collector"
	"github.com/G-Research/statscollector/internal/statscollector/eb"
)

// Not declared with the production profile.
func declareTestOnly(r *collector.Registry) error {
	return eb.Declare(r, eb.Definition{
		Name:        "eb-test",
		Description: "EB Test",
		Nines:       99,
		Days:        2,
		TestOnly:    true,
	})
}
