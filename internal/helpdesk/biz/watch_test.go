package biz

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExportWatcherDetectsExternalEdit(t *testing.T) {
	export := newTestExport(t)
	require.NoError(t, export.Append(sampleEntry("KB001")))

	changed := make(chan struct{}, 1)
	watcher, err := NewExportWatcher(export, func(ctx context.Context) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go watcher.Run(ctx)

	// Age the last local write so the edit below counts as external.
	export.lastLocalWrite.Store(0)
	require.NoError(t, os.WriteFile(export.Path(), []byte("tampered\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(watchDebounce + 5*time.Second):
		t.Fatal("external edit did not trigger a resync")
	}
}

func TestExportWatcherIgnoresOwnWrites(t *testing.T) {
	export := newTestExport(t)
	require.NoError(t, export.Append(sampleEntry("KB001")))

	changed := make(chan struct{}, 1)
	watcher, err := NewExportWatcher(export, func(ctx context.Context) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go watcher.Run(ctx)

	require.NoError(t, export.Append(sampleEntry("KB002")))

	select {
	case <-changed:
		t.Fatal("own write should not trigger a resync")
	case <-time.After(watchDebounce + 500*time.Millisecond):
	}
}
