package rdns

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treenet/internal/domain"
)

// startServer runs an in-process DNS server answering PTR queries from records
func startServer(t *testing.T, records map[string]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc("in-addr.arpa.", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		q := r.Question[0]
		name, ok := records[q.Name]
		if !ok {
			m.SetRcode(r, dns.RcodeNameError)
			w.WriteMsg(m)
			return
		}
		m.Answer = append(m.Answer, &dns.PTR{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 60},
			Ptr: name,
		})
		w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestLookupPTR(t *testing.T) {
	addr := startServer(t, map[string]string{
		"1.0.0.10.in-addr.arpa.": "ge-0-0-1.core1.example.net.",
	})
	e := New(addr, time.Second)

	tests := []struct {
		name string
		addr string
		want string
	}{
		{"known", "10.0.0.1", "ge-0-0-1.core1.example.net"},
		{"nxdomain", "10.0.0.2", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.LookupPTR(context.Background(), netip.MustParseAddr(tt.addr))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnrich(t *testing.T) {
	addr := startServer(t, map[string]string{
		"1.0.0.10.in-addr.arpa.": "ge-0-0-1.core1.example.net.",
		"2.0.0.10.in-addr.arpa.": "ge-0-0-2.core1.example.net.",
		"3.0.0.10.in-addr.arpa.": "should-not-replace.example.net.",
	})

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "lookups"}, []string{"outcome"})
	e := New(addr, time.Second).WithLookupCounter(counter).WithWorkers(2)

	a1 := netip.MustParseAddr("10.0.0.1")
	a2 := netip.MustParseAddr("10.0.0.2")
	a3 := netip.MustParseAddr("10.0.0.3")
	a4 := netip.MustParseAddr("10.0.0.4")

	hints := domain.NewHintSet(
		&domain.Hint{Addr: a1, InitialTTL: 255},
		&domain.Hint{Addr: a3, HostName: "xe-1.edge.example.net"},
	)

	res, err := e.Enrich(context.Background(), hints, []netip.Addr{a1, a2, a3, a4, {}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Created)
	assert.Empty(t, res.Errors)

	h1, _ := hints.Hint(a1)
	assert.Equal(t, "ge-0-0-1.core1.example.net", h1.HostName)
	assert.Equal(t, uint8(255), h1.InitialTTL)

	h2, ok := hints.Hint(a2)
	require.True(t, ok)
	assert.Equal(t, "ge-0-0-2.core1.example.net", h2.HostName)

	h3, _ := hints.Hint(a3)
	assert.Equal(t, "xe-1.edge.example.net", h3.HostName)

	_, ok = hints.Hint(a4)
	assert.False(t, ok)

	assert.Equal(t, 2.0, testutil.ToFloat64(counter.WithLabelValues(OutcomeFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues(OutcomeNotFound)))
}

func TestEnrichUnreachableServer(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	silent := pc.LocalAddr().String()
	t.Cleanup(func() { pc.Close() })

	e := New(silent, 50*time.Millisecond)
	hints := domain.NewHintSet()

	res, err := e.Enrich(context.Background(), hints, []netip.Addr{netip.MustParseAddr("10.0.0.1")})
	require.NoError(t, err)
	assert.Len(t, res.Errors, 1)
	assert.Empty(t, hints)
}

func TestEnrichNothingToDo(t *testing.T) {
	e := New("127.0.0.1:1", time.Second)
	a := netip.MustParseAddr("10.0.0.1")
	hints := domain.NewHintSet(&domain.Hint{Addr: a, HostName: "r1.example.net"})

	res, err := e.Enrich(context.Background(), hints, []netip.Addr{a})
	require.NoError(t, err)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Created)
}
