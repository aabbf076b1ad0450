package hub

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treenet/internal/service"
)

func TestFormat(t *testing.T) {
	msg, err := format(service.Event{Type: service.EventBuildCompleted, Payload: map[string]int{"routers": 3}})
	require.NoError(t, err)
	assert.Equal(t,
		"event: build_completed\ndata: {\"type\":\"build_completed\",\"payload\":{\"routers\":3}}\n\n",
		string(msg))
}

func TestServeHTTPStreamsEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New()
	go h.Run(ctx)

	bus := service.NewEventBus()
	h.Forward(ctx, bus)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	bus.Publish(service.Event{Type: service.EventBuildStarted})

	lines := make(chan string, 8)
	go func() {
		for {
			l, err := reader.ReadString('\n')
			if err != nil {
				close(lines)
				return
			}
			lines <- l
		}
	}()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case l, ok := <-lines:
			require.True(t, ok, "stream closed")
			if strings.HasPrefix(l, "event: ") {
				assert.Equal(t, "event: build_started\n", l)
				return
			}
		case <-deadline:
			t.Fatal("no event received")
		}
	}
}

func TestRunStopsClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New()
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	cancel()
	<-stopped

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
