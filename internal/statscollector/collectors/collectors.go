// Package collectors declares every collector the service knows about.
package collectors

import (
	"github.com/hashicorp/go-multierror"

	"github.com/G-Research/statscollector/internal/statscollector/collector"
)

// DeclareAll declares every collector with r.
func DeclareAll(r *collector.Registry) error {
	var result *multierror.Error
	for _, declare := range []func(*collector.Registry) error{
		declareTaskCollectors,
		declareGecko,
		declareTestOnly,
	} {
		result = multierror.Append(result, declare(r))
	}
	return result.ErrorOrNil()
}
