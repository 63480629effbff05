// Package slo declares collectors computing service level objectives. An objective is
// met (1) while every one of its indicators is within its threshold, and missed (0)
// otherwise.
package slo

import (
	"context"

	"github.com/pkg/errors"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/statscollector/collector"
	"github.com/G-Research/statscollector/internal/statscollector/metricstream"
	"github.com/G-Research/statscollector/internal/statscollector/sli"
)

type Indicator struct {
	// Name of the SLI, without the sli. prefix
	SLI string
	// Shortest resolution underlying the SLI
	Resolution metricstream.Resolution
	// Reports whether the objective is met for a value of the SLI
	Met func(value float64) bool
}

type Definition struct {
	// The collector is named slo.<Name>, and so is the metric it writes.
	Name        string
	Description string
	Requires    []collector.Component
	Indicators  []Indicator
	TestOnly    bool
}

// Aggregate returns 1 if every indicator is met; an absent value is not met.
func Aggregate(indicators []Indicator) metricstream.AggregateFunc {
	return func(values []*float64) float64 {
		for i, v := range values {
			if v == nil || !indicators[i].Met(*v) {
				return 0
			}
		}
		return 1
	}
}

func Declare(r *collector.Registry, d Definition) error {
	if len(d.Indicators) == 0 {
		return errors.WithStack(&apierrors.ErrInvalidArgument{Name: "indicators", Value: d.Name, Message: "SLO needs at least one indicator"})
	}
	inputs := make([]sli.Input, len(d.Indicators))
	for i, indicator := range d.Indicators {
		if indicator.Met == nil {
			return errors.WithStack(&apierrors.ErrInvalidArgument{Name: "met", Value: indicator.SLI, Message: "indicator needs a threshold function"})
		}
		if _, err := indicator.Resolution.Millis(); err != nil {
			return err
		}
		inputs[i] = sli.Input{
			Name:       indicator.SLI,
			Query:      "sf_metric:sli." + indicator.SLI,
			Resolution: indicator.Resolution,
		}
	}
	return r.Declare(collector.Declaration{
		Name:        "slo." + d.Name,
		Description: d.Description,
		Requires: append([]collector.Component{
			collector.ComponentMonitor,
			collector.ComponentClock,
			collector.ComponentSignalFx,
			collector.ComponentIngest,
		}, d.Requires...),
		TestOnly: d.TestOnly,
		Setup: func(ctx context.Context, env *collector.Env) error {
			return sli.StartPipeline(ctx, env, "slo."+d.Name, inputs, Aggregate(d.Indicators))
		},
	})
}
