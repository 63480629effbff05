// Package sli declares collectors computing service level indicators: time series
// derived by aligning and aggregating other time series read back from SignalFx.
package sli

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/statscollector/collector"
	"github.com/G-Research/statscollector/internal/statscollector/metricstream"
)

type SpecKind string

const (
	// A metric written to SignalFx directly
	SpecSignalFx SpecKind = "signalfx"
	// A percentile of a metric submitted through statsum, which SignalFx stores as
	// <metric>.<resolution>.p<percentile>
	SpecStatsum SpecKind = "statsum"
)

// StreamSpec describes an input time series.
type StreamSpec struct {
	Kind       SpecKind
	Metric     string
	Resolution metricstream.Resolution
	Percentile int
}

func SignalFx(metric string, resolution metricstream.Resolution) StreamSpec {
	return StreamSpec{Kind: SpecSignalFx, Metric: metric, Resolution: resolution}
}

func Statsum(metric string, resolution metricstream.Resolution, percentile int) StreamSpec {
	return StreamSpec{Kind: SpecStatsum, Metric: metric, Resolution: resolution, Percentile: percentile}
}

// Input resolves the spec into the SignalFx time series it names.
func (s StreamSpec) Input() (Input, error) {
	switch s.Kind {
	case SpecSignalFx:
		if s.Metric == "" {
			return Input{}, errors.WithStack(&apierrors.ErrInvalidArgument{Name: "metric", Value: s.Metric, Message: "stream spec needs a metric"})
		}
		if _, err := s.Resolution.Millis(); err != nil {
			return Input{}, err
		}
		return Input{Name: s.Metric, Query: "sf_metric:" + s.Metric, Resolution: s.Resolution}, nil
	case SpecStatsum:
		return SignalFx(fmt.Sprintf("%s.%s.p%d", s.Metric, s.Resolution, s.Percentile), s.Resolution).Input()
	default:
		return Input{}, errors.WithStack(&apierrors.ErrInvalidArgument{Name: "spec", Value: string(s.Kind), Message: "unknown stream spec type"})
	}
}

// InputsFunc computes the inputs of an SLI when it is set up, e.g. from a listing of
// worker types.
type InputsFunc func(ctx context.Context, env *collector.Env) ([]StreamSpec, error)

type Definition struct {
	// The collector is named sli.<Name>, and so is the metric it writes.
	Name        string
	Description string
	// Components needed beyond those every SLI needs
	Requires []collector.Component
	// Either Inputs or ComputeInputs must be set.
	Inputs        []StreamSpec
	ComputeInputs InputsFunc
	Aggregate     metricstream.AggregateFunc
	TestOnly      bool
}

var baseRequirements = []collector.Component{
	collector.ComponentMonitor,
	collector.ComponentClock,
	collector.ComponentSignalFx,
	collector.ComponentIngest,
}

func Declare(r *collector.Registry, d Definition) error {
	if d.Aggregate == nil {
		return errors.WithStack(&apierrors.ErrInvalidArgument{Name: "aggregate", Value: d.Name, Message: "SLI needs an aggregate function"})
	}
	return r.Declare(collector.Declaration{
		Name:        "sli." + d.Name,
		Description: d.Description,
		Requires:    append(append([]collector.Component{}, baseRequirements...), d.Requires...),
		TestOnly:    d.TestOnly,
		Setup: func(ctx context.Context, env *collector.Env) error {
			specs := d.Inputs
			if d.ComputeInputs != nil {
				var err error
				if specs, err = d.ComputeInputs(ctx, env); err != nil {
					return errors.WithMessage(err, "computing inputs")
				}
			}
			inputs := make([]Input, len(specs))
			for i, spec := range specs {
				input, err := spec.Input()
				if err != nil {
					return err
				}
				inputs[i] = input
			}
			return StartPipeline(ctx, env, "sli."+d.Name, inputs, d.Aggregate)
		},
	})
}
