package ticket

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketd/internal/shared/readiness"
)

type mockMigrator struct {
	err   error
	calls int
}

func (m *mockMigrator) Apply(ctx context.Context) error {
	m.calls++
	return m.err
}

type pingRepo struct {
	mockRepo
	pingErrs []error // consumed in order; empty means success
	pings    int
}

func (p *pingRepo) Ping(ctx context.Context) error {
	p.pings++
	if len(p.pingErrs) == 0 {
		return nil
	}
	err := p.pingErrs[0]
	p.pingErrs = p.pingErrs[1:]
	return err
}

func TestBootstrapper_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("opens gate after migration and probe", func(t *testing.T) {
		migrator := &mockMigrator{}
		state := readiness.NewState()
		b := NewBootstrapper(migrator, &pingRepo{}, state, testLogger())

		require.NoError(t, b.Run(ctx))
		assert.True(t, state.Ready())
		assert.Equal(t, 1, migrator.calls)
	})

	t.Run("migration failure keeps gate closed", func(t *testing.T) {
		migrator := &mockMigrator{err: fmt.Errorf("boom")}
		state := readiness.NewState()
		b := NewBootstrapper(migrator, &pingRepo{}, state, testLogger())

		assert.Error(t, b.Run(ctx))
		assert.False(t, state.Ready())
	})

	t.Run("probe retries transient failures", func(t *testing.T) {
		repo := &pingRepo{pingErrs: []error{fmt.Errorf("refused"), fmt.Errorf("refused")}}
		state := readiness.NewState()
		b := NewBootstrapper(nil, repo, state, testLogger())

		require.NoError(t, b.Run(ctx))
		assert.True(t, state.Ready())
		assert.Equal(t, 3, repo.pings)
	})

	t.Run("exhausted probes keep gate closed", func(t *testing.T) {
		repo := &pingRepo{pingErrs: []error{fmt.Errorf("a"), fmt.Errorf("b"), fmt.Errorf("c")}}
		state := readiness.NewState()
		b := NewBootstrapper(nil, repo, state, testLogger())

		assert.Error(t, b.Run(ctx))
		assert.False(t, state.Ready())
	})

	t.Run("nil migrator skips migration", func(t *testing.T) {
		state := readiness.NewState()
		b := NewBootstrapper(nil, &pingRepo{}, state, testLogger())
		require.NoError(t, b.Run(ctx))
		assert.True(t, state.Ready())
	})
}
