package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/tdf-pipeline/conversion"
	"github.com/ruteri/tdf-pipeline/converter"
	"github.com/ruteri/tdf-pipeline/interfaces"
	"github.com/ruteri/tdf-pipeline/sdkclient"
	"github.com/ruteri/tdf-pipeline/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type converterFunc func(ctx context.Context, batch []interfaces.Item) ([]interfaces.Outcome, error)

func (f converterFunc) Convert(ctx context.Context, batch []interfaces.Item) ([]interfaces.Outcome, error) {
	return f(ctx, batch)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stores struct {
	dir    string
	source *storage.FileStore
	sinks  map[interfaces.Route]interfaces.ItemStore
}

func newStores(t *testing.T) stores {
	t.Helper()
	dir := t.TempDir()
	source, err := storage.NewFileStore(filepath.Join(dir, "inbox"), testLogger())
	require.NoError(t, err)

	sinks := make(map[interfaces.Route]interfaces.ItemStore)
	for _, route := range interfaces.Routes {
		sink, err := storage.NewFileStore(filepath.Join(dir, route.String()), testLogger())
		require.NoError(t, err)
		sinks[route] = sink
	}
	return stores{dir: dir, source: source, sinks: sinks}
}

func (s stores) ids(t *testing.T, store interfaces.ItemStore) []string {
	t.Helper()
	ids, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	return ids
}

func addItems(t *testing.T, store interfaces.ItemStore, n int, kv ...string) {
	t.Helper()
	attrs := map[string]string{}
	for i := 0; i+1 < len(kv); i += 2 {
		attrs[kv[i]] = kv[i+1]
	}
	for i := 0; i < n; i++ {
		require.NoError(t, store.Store(context.Background(), interfaces.Item{
			ID:         fmt.Sprintf("item-%02d", i),
			Attributes: interfaces.NewAttributes(attrs),
			Payload:    []byte(fmt.Sprintf("payload %d", i)),
		}))
	}
}

func TestNewRunner_Validation(t *testing.T) {
	s := newStores(t)
	conv := converterFunc(func(context.Context, []interfaces.Item) ([]interfaces.Outcome, error) { return nil, nil })

	_, err := NewRunner(testLogger(), Config{Sinks: s.sinks, Converter: conv})
	assert.Error(t, err)

	_, err = NewRunner(testLogger(), Config{Source: s.source, Sinks: s.sinks})
	assert.Error(t, err)

	_, err = NewRunner(testLogger(), Config{Source: s.source, Sinks: map[interfaces.Route]interfaces.ItemStore{
		interfaces.RouteSuccess: s.sinks[interfaces.RouteSuccess],
	}, Converter: conv})
	assert.ErrorContains(t, err, "failure")

	_, err = NewRunner(testLogger(), Config{Source: s.source, Sinks: s.sinks, Converter: conv, PullSize: -1})
	assert.Error(t, err)

	runner, err := NewRunner(testLogger(), Config{Source: s.source, Sinks: s.sinks, Converter: conv})
	require.NoError(t, err)
	assert.Equal(t, DefaultPullSize, runner.cfg.PullSize)
}

func TestRunner_RunOnce(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	addItems(t, s.source, 3)

	var batchSizes []int
	conv := converterFunc(func(_ context.Context, batch []interfaces.Item) ([]interfaces.Outcome, error) {
		batchSizes = append(batchSizes, len(batch))
		outcomes := make([]interfaces.Outcome, len(batch))
		for i, item := range batch {
			outcomes[i] = interfaces.Outcome{Item: item, Route: interfaces.Routes[i%len(interfaces.Routes)]}
		}
		return outcomes, nil
	})

	runner, err := NewRunner(testLogger(), Config{Source: s.source, Sinks: s.sinks, Converter: conv, PullSize: 2})
	require.NoError(t, err)

	summary, err := runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pulled)
	assert.Equal(t, []string{"item-00"}, s.ids(t, s.sinks[interfaces.RouteSuccess]))
	assert.Equal(t, []string{"item-01"}, s.ids(t, s.sinks[interfaces.RouteFailure]))
	assert.Equal(t, []string{"item-02"}, s.ids(t, s.source))

	summary, err = runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pulled)
	assert.Empty(t, s.ids(t, s.source))

	summary, err = runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Pulled)
	assert.Equal(t, []int{2, 1}, batchSizes)
}

func TestRunner_BatchErrorKeepsItems(t *testing.T) {
	s := newStores(t)
	addItems(t, s.source, 2)

	buildErr := &interfaces.ClientBuildError{Err: errors.New("platform down")}
	runner, err := NewRunner(testLogger(), Config{
		Source: s.source,
		Sinks:  s.sinks,
		Converter: converterFunc(func(context.Context, []interfaces.Item) ([]interfaces.Outcome, error) {
			return nil, buildErr
		}),
	})
	require.NoError(t, err)

	summary, err := runner.RunOnce(context.Background())
	require.ErrorIs(t, err, buildErr)
	assert.Equal(t, 2, summary.Retained)
	assert.Equal(t, []string{"item-00", "item-01"}, s.ids(t, s.source))
	for _, route := range interfaces.Routes {
		assert.Empty(t, s.ids(t, s.sinks[route]))
	}
}

func passthrough(_ context.Context, batch []interfaces.Item) ([]interfaces.Outcome, error) {
	outcomes := make([]interfaces.Outcome, len(batch))
	for i, item := range batch {
		outcomes[i] = interfaces.Outcome{Item: item, Route: interfaces.RouteSuccess}
	}
	return outcomes, nil
}

func TestRunner_CorruptMetadataRoutedToFailure(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	addItems(t, s.source, 3, "tdf_attribute", "https://example.com/attr/a/value/b")
	for _, id := range []string{"item-00", "item-01"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.dir, "inbox", id+".attributes.json"), []byte("{not json"), 0o644))
	}

	var converted []string
	runner, err := NewRunner(testLogger(), Config{
		Source: s.source,
		Sinks:  s.sinks,
		Converter: converterFunc(func(ctx context.Context, batch []interfaces.Item) ([]interfaces.Outcome, error) {
			for _, item := range batch {
				converted = append(converted, item.ID)
			}
			return passthrough(ctx, batch)
		}),
		PullSize: 2,
	})
	require.NoError(t, err)

	summary, err := runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Pulled)
	assert.Equal(t, 2, summary.Routed[interfaces.RouteFailure])
	assert.Equal(t, []string{"item-00", "item-01"}, s.ids(t, s.sinks[interfaces.RouteFailure]))
	assert.Equal(t, []string{"item-02"}, s.ids(t, s.source))

	for i, id := range []string{"item-00", "item-01"} {
		failed, err := s.sinks[interfaces.RouteFailure].Fetch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []byte(fmt.Sprintf("payload %d", i)), failed.Payload)
	}

	summary, err = runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pulled)
	assert.Equal(t, []string{"item-02"}, converted)
	assert.Equal(t, []string{"item-02"}, s.ids(t, s.sinks[interfaces.RouteSuccess]))
	assert.Empty(t, s.ids(t, s.source))
}

// flakyStore fails to fetch the listed ids.
type flakyStore struct {
	*storage.FileStore
	broken map[string]bool
}

func (f *flakyStore) Fetch(ctx context.Context, id string) (interfaces.Item, error) {
	if f.broken[id] {
		return interfaces.Item{}, errors.New("read timeout")
	}
	return f.FileStore.Fetch(ctx, id)
}

func TestRunner_UnfetchableItemsDoNotBlock(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	addItems(t, s.source, 3)
	source := &flakyStore{FileStore: s.source, broken: map[string]bool{"item-00": true, "item-01": true}}

	runner, err := NewRunner(testLogger(), Config{
		Source:    source,
		Sinks:     s.sinks,
		Converter: converterFunc(passthrough),
		PullSize:  2,
	})
	require.NoError(t, err)

	summary, err := runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Pulled)
	assert.Equal(t, 2, summary.Retained)

	summary, err = runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pulled)
	assert.Equal(t, []string{"item-02"}, s.ids(t, s.sinks[interfaces.RouteSuccess]))
	assert.Equal(t, []string{"item-00", "item-01"}, s.ids(t, s.source))

	// Only unfetchable items remain, so they are tried again.
	delete(source.broken, "item-00")
	summary, err = runner.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pulled)
	assert.Equal(t, 1, summary.Retained)
	assert.Equal(t, []string{"item-01"}, s.ids(t, s.source))
}

func TestRunner_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	addItems(t, s.source, 4, "tdf_attribute", "https://example.com/attr/a/value/b")
	require.NoError(t, s.source.Store(ctx, interfaces.Item{ID: "no-attributes", Attributes: interfaces.NewAttributes(nil), Payload: []byte("x")}))

	client := sdkclient.NewFakeClient()
	manager := sdkclient.NewManager(testLogger(), interfaces.PlatformSettings{Endpoint: "localhost:8080"}, client.Builder(nil), nil)
	assembler := conversion.NewAssembler(testLogger(), conversion.AssemblerConfig{DefaultKASEndpoint: "http://localhost:8080/kas"})
	encryptor := converter.NewEncryptor(testLogger(), interfaces.FormatZTDF, manager, assembler)

	runner, err := NewRunner(testLogger(), Config{
		Source:    s.source,
		Sinks:     s.sinks,
		Converter: encryptor,
		PullSize:  2,
		Interval:  10 * time.Millisecond,
	})
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error)
	go func() { done <- runner.Run(runCtx) }()

	require.Eventually(t, func() bool {
		ids, err := s.source.List(ctx, 0)
		return err == nil && len(ids) == 0
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Len(t, s.ids(t, s.sinks[interfaces.RouteSuccess]), 4)
	assert.Equal(t, []string{"no-attributes"}, s.ids(t, s.sinks[interfaces.RouteFailure]))

	encrypted, err := s.sinks[interfaces.RouteSuccess].Fetch(ctx, "item-00")
	require.NoError(t, err)
	mime, _ := encrypted.Attributes.Get(interfaces.MIMETypeAttribute)
	assert.Equal(t, "application/ztdf+zip", mime)

	failed, err := s.sinks[interfaces.RouteFailure].Fetch(ctx, "no-attributes")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), failed.Payload)
}
