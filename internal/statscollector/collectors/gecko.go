package collectors

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/G-Research/statscollector/internal/statscollector/collector"
	"github.com/G-Research/statscollector/internal/statscollector/eb"
	"github.com/G-Research/statscollector/internal/statscollector/metricstream"
	"github.com/G-Research/statscollector/internal/statscollector/pending"
	"github.com/G-Research/statscollector/internal/statscollector/sli"
	"github.com/G-Research/statscollector/internal/statscollector/slo"
)

const awsProvisioner = "aws-provisioner-v1"

var (
	alphaOrBeta      = regexp.MustCompile(`-(alpha|beta)$`)
	geckoBuild       = regexp.MustCompile(`^gecko-[123]-b-`)
	geckoTestOrBuild = regexp.MustCompile(`^gecko-(t|[123]-b)-`)
)

func isGeckoTest(workerType string) bool {
	// old worker types are desktop-test*; -alpha and -beta are for testing and may be delayed
	return strings.HasPrefix(workerType, "desktop-test") ||
		(strings.HasPrefix(workerType, "gecko-t-") && !alphaOrBeta.MatchString(workerType))
}

func isGeckoBuild(workerType string) bool {
	return geckoBuild.MatchString(workerType)
}

func isGeckoOther(workerType string) bool {
	return strings.HasPrefix(workerType, "gecko-") && !geckoTestOrBuild.MatchString(workerType)
}

// pendingInputs computes the 95th percentile pending times, over 5 minutes, of the AWS
// worker types matching filter, plus extra.
func pendingInputs(filter func(string) bool, extra ...string) sli.InputsFunc {
	return func(ctx context.Context, env *collector.Env) ([]sli.StreamSpec, error) {
		workerTypes, err := env.Queue.WorkerTypes(ctx, awsProvisioner)
		if err != nil {
			return nil, err
		}
		var selected []string
		for _, wt := range workerTypes {
			if filter(wt) {
				selected = append(selected, wt)
			}
		}
		for _, wt := range extra {
			if !contains(selected, wt) {
				selected = append(selected, wt)
			}
		}
		specs := make([]sli.StreamSpec, 0, len(selected))
		for _, wt := range selected {
			metric := env.Config.MetricPrefix + ".tasks." + pending.PoolName(awsProvisioner, wt) + ".pending"
			specs = append(specs, sli.Statsum(metric, metricstream.Resolution5m, 95))
		}
		return specs, nil
	}
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

func below(d time.Duration) func(float64) bool {
	return func(v float64) bool {
		return v < float64(d.Milliseconds())
	}
}

func declareGecko(r *collector.Registry) error {
	const percentileNote = "\n\nEach worker type is measured at the 95th percentile over a 5-minute period to avoid outliers."
	var result *multierror.Error
	result = multierror.Append(result, sli.Declare(r, sli.Definition{
		Name:          "gecko.pending.test",
		Description:   "The maximum pending time of any of the gecko test worker types." + percentileNote,
		Requires:      []collector.Component{collector.ComponentQueue},
		ComputeInputs: pendingInputs(isGeckoTest),
		Aggregate:     metricstream.Max,
	}))
	result = multierror.Append(result, sli.Declare(r, sli.Definition{
		Name:          "gecko.pending.build",
		Description:   "The maximum pending time of any of the gecko build worker types." + percentileNote,
		Requires:      []collector.Component{collector.ComponentQueue},
		ComputeInputs: pendingInputs(isGeckoBuild),
		Aggregate:     metricstream.Max,
	}))
	result = multierror.Append(result, sli.Declare(r, sli.Definition{
		Name: "gecko.pending.other",
		Description: "The maximum pending time of any of the non-test, non-build gecko worker types, " +
			"including the decision task and image building." + percentileNote,
		Requires:      []collector.Component{collector.ComponentQueue},
		ComputeInputs: pendingInputs(isGeckoOther, "taskcluster-images"),
		Aggregate:     metricstream.Max,
	}))
	result = multierror.Append(result, slo.Declare(r, slo.Definition{
		Name: "gecko.pending",
		Description: "Test and build jobs should start within 45 and 30 minutes of being scheduled " +
			"respectively, and other jobs within 20 minutes.",
		Indicators: []slo.Indicator{
			{SLI: "gecko.pending.other", Resolution: metricstream.Resolution5m, Met: below(20 * time.Minute)},
			{SLI: "gecko.pending.test", Resolution: metricstream.Resolution5m, Met: below(45 * time.Minute)},
			{SLI: "gecko.pending.build", Resolution: metricstream.Resolution5m, Met: below(30 * time.Minute)},
		},
	}))
	result = multierror.Append(result, eb.Declare(r, eb.Definition{
		Name:        "gecko.pending",
		Description: "Gecko pending times should be within their thresholds 95% of the time, measured over the previous two weeks.",
		Nines:       95,
		Days:        14,
	}))
	return result.ErrorOrNil()
}
