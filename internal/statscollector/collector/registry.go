// Package collector keeps the set of declared collectors and starts the selected ones
// with the components they require.
package collector

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/common/task"
	"github.com/G-Research/statscollector/internal/statscollector/configuration"
	"github.com/G-Research/statscollector/internal/statscollector/listener"
	"github.com/G-Research/statscollector/internal/statscollector/metrics"
	"github.com/G-Research/statscollector/internal/statscollector/monitor"
	"github.com/G-Research/statscollector/internal/statscollector/queue"
	"github.com/G-Research/statscollector/internal/statscollector/signalfx"
)

// Component names something a collector may require.
type Component string

const (
	ComponentClock    Component = "clock"
	ComponentMonitor  Component = "monitor"
	ComponentSignalFx Component = "signalfx"
	ComponentIngest   Component = "ingest"
	ComponentQueue    Component = "queue"
	ComponentListener Component = "listener"
	ComponentTasks    Component = "tasks"
)

// Components are the shared services collectors are built from. Fields a collector
// does not require may be nil.
type Components struct {
	Clock    clock.Clock
	Monitor  monitor.Monitor
	SignalFx signalfx.TimeSeriesQuerier
	Ingest   signalfx.Sender
	Queue    queue.Client
	Listener *listener.Dispatcher
	Tasks    *task.BackgroundTaskManager
	Metrics  *metrics.Metrics
	Config   configuration.StatsCollectorConfiguration
}

func (c *Components) provides(component Component) bool {
	switch component {
	case ComponentClock:
		return c.Clock != nil
	case ComponentMonitor:
		return c.Monitor != nil
	case ComponentSignalFx:
		return c.SignalFx != nil
	case ComponentIngest:
		return c.Ingest != nil
	case ComponentQueue:
		return c.Queue != nil
	case ComponentListener:
		return c.Listener != nil
	case ComponentTasks:
		return c.Tasks != nil
	default:
		return false
	}
}

// Env is passed to a collector's setup function.
type Env struct {
	*Components
	Name string
	Log  *log.Entry
}

type SetupFunc func(ctx context.Context, env *Env) error

type Declaration struct {
	Name        string
	Description string
	Requires    []Component
	// Test-only collectors are not declared when running with the production profile.
	TestOnly bool
	Setup    SetupFunc
}

// Info is the metadata of a declaration.
type Info struct {
	Name        string
	Description string
	Requires    []Component
	TestOnly    bool
}

type Registry struct {
	mu           sync.Mutex
	production   bool
	declarations map[string]Declaration
}

func NewRegistry(profile string) *Registry {
	return &Registry{
		production:   profile == configuration.ProfileProduction,
		declarations: map[string]Declaration{},
	}
}

func (r *Registry) Declare(d Declaration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.Name == "" {
		return errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:    "name",
			Value:   d.Name,
			Message: "collector must have a name",
		})
	}
	if _, exists := r.declarations[d.Name]; exists {
		return errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:    "name",
			Value:   d.Name,
			Message: "collector must have a unique name",
		})
	}
	if d.Setup == nil {
		return errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:    "setup",
			Value:   d.Name,
			Message: "collector has no setup function",
		})
	}
	if d.TestOnly && r.production {
		return nil
	}
	r.declarations[d.Name] = d
	return nil
}

// Declarations returns the metadata of all declared collectors, sorted by name.
func (r *Registry) Declarations() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]Info, 0, len(r.declarations))
	for _, d := range r.declarations {
		infos = append(infos, Info{
			Name:        d.Name,
			Description: d.Description,
			Requires:    append([]Component{}, d.Requires...),
			TestOnly:    d.TestOnly,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Select returns the named declarations, or all of them if names is empty.
func (r *Registry) Select(names []string) ([]Declaration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(names) == 0 {
		selected := make([]Declaration, 0, len(r.declarations))
		for _, d := range r.declarations {
			selected = append(selected, d)
		}
		sort.Slice(selected, func(i, j int) bool { return selected[i].Name < selected[j].Name })
		return selected, nil
	}
	selected := make([]Declaration, 0, len(names))
	for _, name := range names {
		d, ok := r.declarations[name]
		if !ok {
			return nil, errors.WithStack(&apierrors.ErrNotFound{Type: "collector", Value: name})
		}
		selected = append(selected, d)
	}
	return selected, nil
}

// Start sets up the named collectors (all if names is empty). Every requirement is
// checked before any collector is set up.
func (r *Registry) Start(ctx context.Context, names []string, components *Components) error {
	selected, err := r.Select(names)
	if err != nil {
		return err
	}
	for _, d := range selected {
		for _, required := range d.Requires {
			if !components.provides(required) {
				return errors.Errorf("collector %s requires component %s, which is not available", d.Name, required)
			}
		}
	}
	for _, d := range selected {
		env := &Env{
			Components: components,
			Name:       d.Name,
			Log:        log.WithField("collector", d.Name),
		}
		env.Log.Info("setting up")
		if err := d.Setup(ctx, env); err != nil {
			return errors.WithMessagef(err, "setting up collector %s", d.Name)
		}
	}
	return nil
}
