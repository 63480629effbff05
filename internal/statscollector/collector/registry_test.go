package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/common/clock"
	"github.com/G-Research/statscollector/internal/statscollector/configuration"
)

func noop(context.Context, *Env) error { return nil }

func TestDeclare_RequiresName(t *testing.T) {
	r := NewRegistry(configuration.ProfileDevelopment)
	err := r.Declare(Declaration{Setup: noop})
	assert.True(t, apierrors.IsInvalidArgument(err))
}

func TestDeclare_RequiresUniqueName(t *testing.T) {
	r := NewRegistry(configuration.ProfileDevelopment)
	require.NoError(t, r.Declare(Declaration{Name: "a", Setup: noop}))
	err := r.Declare(Declaration{Name: "a", Setup: noop})
	assert.True(t, apierrors.IsInvalidArgument(err))
}

func TestDeclare_TestOnlyDroppedInProduction(t *testing.T) {
	production := NewRegistry(configuration.ProfileProduction)
	require.NoError(t, production.Declare(Declaration{Name: "a", Setup: noop}))
	require.NoError(t, production.Declare(Declaration{Name: "test", TestOnly: true, Setup: noop}))
	assert.Len(t, production.Declarations(), 1)

	development := NewRegistry(configuration.ProfileDevelopment)
	require.NoError(t, development.Declare(Declaration{Name: "test", TestOnly: true, Setup: noop}))
	assert.Equal(t, []Info{{Name: "test", TestOnly: true, Requires: []Component{}}}, development.Declarations())
}

func TestSelect(t *testing.T) {
	r := NewRegistry(configuration.ProfileDevelopment)
	require.NoError(t, r.Declare(Declaration{Name: "b", Setup: noop}))
	require.NoError(t, r.Declare(Declaration{Name: "a", Setup: noop}))

	all, err := r.Select(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)

	some, err := r.Select([]string{"b"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "b", some[0].Name)

	_, err = r.Select([]string{"b", "nope"})
	assert.True(t, apierrors.IsNotFound(err))
}

func TestStart_ChecksRequirementsFirst(t *testing.T) {
	r := NewRegistry(configuration.ProfileDevelopment)
	var setUp []string
	require.NoError(t, r.Declare(Declaration{
		Name:     "a",
		Requires: []Component{ComponentClock},
		Setup: func(_ context.Context, env *Env) error {
			setUp = append(setUp, env.Name)
			return nil
		},
	}))
	require.NoError(t, r.Declare(Declaration{
		Name:     "b",
		Requires: []Component{ComponentClock, ComponentQueue},
		Setup:    noop,
	}))

	err := r.Start(context.Background(), nil, &Components{Clock: clock.NewFakeClock()})
	assert.Error(t, err)
	assert.Empty(t, setUp)

	require.NoError(t, r.Start(context.Background(), []string{"a"}, &Components{Clock: clock.NewFakeClock()}))
	assert.Equal(t, []string{"a"}, setUp)
}

func TestStart_SetupError(t *testing.T) {
	r := NewRegistry(configuration.ProfileDevelopment)
	require.NoError(t, r.Declare(Declaration{
		Name: "a",
		Setup: func(context.Context, *Env) error {
			return &apierrors.ErrInvalidArgument{Name: "x"}
		},
	}))
	err := r.Start(context.Background(), nil, &Components{})
	assert.True(t, apierrors.IsInvalidArgument(err))
}
