package adapter

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treenet/internal/domain"
)

type fakeEnricher struct {
	name  string
	calls *[]string
	err   error
	pub   EventPublisher
}

func (f *fakeEnricher) Name() string { return f.name }

func (f *fakeEnricher) SetEventPublisher(pub EventPublisher) { f.pub = pub }

func (f *fakeEnricher) Enrich(_ context.Context, hints domain.HintSet, addrs []netip.Addr) (Result, error) {
	*f.calls = append(*f.calls, f.name)
	if f.pub != nil {
		f.pub.PublishEnrichEvent("enrich-complete", f.name)
	}
	if f.err != nil {
		return Result{}, f.err
	}
	for _, a := range addrs {
		hints.Add(&domain.Hint{Addr: a, HostName: f.name})
	}
	return Result{Created: len(addrs)}, nil
}

func TestRegistryRunOrder(t *testing.T) {
	var calls []string
	r := NewRegistry()

	var events []interface{}
	r.SetEventHandler(func(eventType string, payload interface{}) {
		events = append(events, payload)
	})

	require.NoError(t, r.Register(&fakeEnricher{name: "low", calls: &calls}, Config{Enabled: true, Priority: 1}))
	require.NoError(t, r.Register(&fakeEnricher{name: "high", calls: &calls}, Config{Enabled: true, Priority: 5}))
	require.NoError(t, r.Register(&fakeEnricher{name: "off", calls: &calls}, Config{Enabled: false, Priority: 9}))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "off", r.List()[0].Name)

	hints := domain.NewHintSet()
	a := netip.MustParseAddr("10.0.0.1")
	results, err := r.Run(context.Background(), hints, []netip.Addr{a})
	require.NoError(t, err)

	assert.Equal(t, []string{"high", "low"}, calls)
	assert.Equal(t, []interface{}{"high", "low"}, events)
	assert.Equal(t, 1, results["high"].Created)

	h, _ := hints.Hint(a)
	assert.Equal(t, "low", h.HostName)
}

func TestRegistryDuplicate(t *testing.T) {
	var calls []string
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeEnricher{name: "x", calls: &calls}, Config{Enabled: true}))
	assert.Error(t, r.Register(&fakeEnricher{name: "x", calls: &calls}, Config{Enabled: true}))
}

func TestRegistryContinuesAfterFailure(t *testing.T) {
	var calls []string
	r := NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, r.Register(&fakeEnricher{name: "a", calls: &calls, err: boom}, Config{Enabled: true, Priority: 2}))
	require.NoError(t, r.Register(&fakeEnricher{name: "b", calls: &calls}, Config{Enabled: true, Priority: 1}))

	_, err := r.Run(context.Background(), domain.NewHintSet(), nil)
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestRegistryCanceled(t *testing.T) {
	var calls []string
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeEnricher{name: "a", calls: &calls}, Config{Enabled: true}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, domain.NewHintSet(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}
