package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundledger/internal/config"
	"fundledger/internal/core"
	"fundledger/internal/dispatch"
	"fundledger/internal/events"
	applog "fundledger/internal/log"
)

func TestRunWatch_RefreshesAndFollowsEvents(t *testing.T) {
	setEnv(t, "memory", seedDir(t))
	cfg := config.Load()
	require.NoError(t, cfg.Validate())
	cfg.RefreshInterval = time.Hour

	loop := dispatch.NewLoop(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := NewApp(ctx, cfg, applog.Discard(), loop)
	require.NoError(t, err)
	defer closeApp(app)

	applied := make(chan core.BudgetSnapshot, 8)
	app.View.Subscribe(func(s core.BudgetSnapshot) { applied <- s })

	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, app, loop) }()

	next := func() core.BudgetSnapshot {
		select {
		case s := <-applied:
			return s
		case <-time.After(5 * time.Second):
			t.Fatal("no snapshot applied")
			return core.BudgetSnapshot{}
		}
	}

	first := next()
	assert.Equal(t, 2025, first.FiscalYear)
	assert.Len(t, first.Accounts, 3)
	assert.Equal(t, 1, app.Cache.Size())
	require.Eventually(t, func() bool { return !app.View.IsLoading() }, 2*time.Second, 5*time.Millisecond)

	// a change from another process drops the cache and reloads
	require.NoError(t, app.Messaging.Bus.Publish(ctx, events.NewEnterpriseChanged("other-process")))
	second := next()
	assert.Len(t, second.Enterprises, 2)

	// our own messages do not trigger another refresh
	require.NoError(t, app.Messaging.Bus.Publish(ctx, events.NewEnterpriseChanged(app.Source)))
	select {
	case <-applied:
		t.Fatal("own message caused a refresh")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
