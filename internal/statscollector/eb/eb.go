// Package eb declares error budget collectors. An error budget looks at an SLO over a
// number of days and scales from 1 (the objective was always met) to 0 (it was missed
// more often than allowed).
package eb

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/statscollector/collector"
	"github.com/G-Research/statscollector/internal/statscollector/metricstream"
	"github.com/G-Research/statscollector/internal/statscollector/monitor"
	"github.com/G-Research/statscollector/internal/statscollector/signalfx"
)

// Budgets are computed from hourly SLO values.
var (
	resolution = metricstream.Resolution1h
	hour       = resolution.MustMillis()
	day        = 24 * hour
)

const (
	// SLIs may be up to 5 minutes late and SLOs another 5, so calculate 15 minutes
	// after the hour.
	runDelay = int64(15 * time.Minute / time.Millisecond)
)

type Definition struct {
	// Name of the SLO; the collector and the metric it writes are named eb.<Name>.
	Name        string
	Description string
	Requires    []collector.Component
	// Percentage of time the objective should be met, e.g. 99.9
	Nines float64
	// Number of days the budget covers
	Days     int
	TestOnly bool
}

func Declare(r *collector.Registry, d Definition) error {
	if d.Nines <= 0 || d.Nines >= 100 {
		return errors.WithStack(&apierrors.ErrInvalidArgument{Name: "nines", Value: d.Nines, Message: "must be between 0 and 100"})
	}
	if d.Days <= 0 {
		return errors.WithStack(&apierrors.ErrInvalidArgument{Name: "days", Value: d.Days, Message: "must be positive"})
	}
	return r.Declare(collector.Declaration{
		Name:        "eb." + d.Name,
		Description: d.Description,
		Requires: append([]collector.Component{
			collector.ComponentMonitor,
			collector.ComponentClock,
			collector.ComponentSignalFx,
			collector.ComponentIngest,
		}, d.Requires...),
		TestOnly: d.TestOnly,
		Setup: func(ctx context.Context, env *collector.Env) error {
			New(d, env.Clock, env.SignalFx, env.Ingest, env.Monitor, env.Log).Start(ctx)
			return nil
		},
	})
}

// ErrorBudget recalculates the budget of one SLO every hour.
type ErrorBudget struct {
	def     Definition
	clock   clock.Clock
	rest    signalfx.TimeSeriesQuerier
	ingest  signalfx.Sender
	monitor monitor.Monitor
	log     *log.Entry
}

func New(
	d Definition,
	c clock.Clock,
	rest signalfx.TimeSeriesQuerier,
	ingest signalfx.Sender,
	m monitor.Monitor,
	logger *log.Entry,
) *ErrorBudget {
	return &ErrorBudget{def: d, clock: c, rest: rest, ingest: ingest, monitor: m, log: logger}
}

// Start schedules a calculation shortly after every hour until ctx is cancelled.
func (b *ErrorBudget) Start(ctx context.Context) {
	b.scheduleNext(ctx)
}

func (b *ErrorBudget) scheduleNext(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := b.clock.Msec()
	next := now - now%hour + hour + runDelay
	b.log.Debugf("next calculation at %s", time.UnixMilli(next).UTC())
	b.clock.AfterFunc("calculate error budget for "+b.def.Name, clock.Millis(next-now), func() {
		if ctx.Err() != nil {
			return
		}
		b.scheduleNext(ctx)
		if err := b.Calculate(ctx); err != nil {
			b.monitor.ReportError("eb."+b.def.Name, err)
			b.log.WithError(err).Warn("calculating error budget failed")
		}
	})
}

// Calculate computes the budget as of the start of the current hour. All data of the
// covered days is fetched every time, so late SLO datapoints are taken into account.
// Hours without data count as missed.
func (b *ErrorBudget) Calculate(ctx context.Context) error {
	now := b.clock.Msec()
	now -= now % hour
	start := now - int64(b.def.Days)*day

	history, err := b.rest.TimeSeriesWindow(ctx, "sf_metric:slo."+b.def.Name, start, b.clock.Msec(), hour)
	if err != nil && !apierrors.IsNotFound(err) {
		return err
	}
	if len(history) == 0 {
		b.log.Infof("no data for slo.%s since %s; not calculating error budget", b.def.Name, time.UnixMilli(start).UTC())
		return nil
	}
	if n := len(history); n > 2 {
		b.log.Debugf("latest data from slo.%s: [.., %v at %s, %v at %s]", b.def.Name,
			history[n-2].Value, time.UnixMilli(history[n-2].Ts).UTC(),
			history[n-1].Value, time.UnixMilli(history[n-1].Ts).UTC())
	}

	hoursMeasured := float64(now-history[0].Ts) / float64(hour)
	if hoursMeasured <= 0 {
		b.log.Infof("no complete hour of data for slo.%s yet; not calculating error budget", b.def.Name)
		return nil
	}
	var hoursMet float64
	for _, p := range history {
		hoursMet += p.Value
	}
	budget := Budget(hoursMeasured, hoursMet, b.def.Nines)

	fractionMissed := (hoursMeasured - hoursMet) / hoursMeasured
	b.log.Infof("error budget for %s at %s is %v: SLO met %v of %v hours or %v%%",
		b.def.Name, time.UnixMilli(now).UTC(), budget, hoursMet, hoursMeasured,
		100-math.Round(fractionMissed*10000)/100)

	b.ingest.Send(signalfx.IngestRequest{
		Gauges: []signalfx.Datum{{Metric: "eb." + b.def.Name, Value: budget, Timestamp: now}},
	})
	return nil
}

// Budget is 1 if the objective was met for all measured hours, falling linearly to 0
// when it was missed for the fraction of hours nines allows.
func Budget(hoursMeasured, hoursMet, nines float64) float64 {
	fractionMissed := (hoursMeasured - hoursMet) / hoursMeasured
	maxFraction := (100 - nines) / 100
	if fractionMissed > maxFraction {
		return 0
	}
	return 1 - fractionMissed/maxFraction
}
