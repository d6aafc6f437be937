package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func hostPort(t *testing.T, srv *httptest.Server) (string, int) {
	t.Helper()
	u := strings.TrimPrefix(srv.URL, "http://")
	host, portStr, err := net.SplitHostPort(u)
	if err != nil {
		t.Fatal(err)
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return host, port
}

func TestProbeReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":[{"id":"llama-3"}]}`))
	}))
	defer srv.Close()

	host, port := hostPort(t, srv)
	p := New(srv.Client())
	res := p.ProbeModelsEndpoint(context.Background(), host, port)

	if res.Status != StatusReady {
		t.Errorf("expected ready, got %s", res.Status)
	}
	if len(res.ModelIDs) != 1 || res.ModelIDs[0] != "llama-3" {
		t.Errorf("unexpected model ids: %v", res.ModelIDs)
	}
}

func TestProbeLoading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	host, port := hostPort(t, srv)
	p := New(srv.Client())
	res := p.ProbeModelsEndpoint(context.Background(), host, port)

	if res.Status != StatusLoading {
		t.Errorf("expected loading, got %s", res.Status)
	}
}

func TestProbeDown(t *testing.T) {
	p := New(nil)
	// Port 1 is reserved/unlikely to be listening; connection should be refused.
	res := p.ProbeModelsEndpoint(context.Background(), "127.0.0.1", 1)

	if res.Status != StatusDown {
		t.Errorf("expected down, got %s", res.Status)
	}
}

func TestWaitForModelsReadySucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	host, port := hostPort(t, srv)
	p := New(srv.Client())
	res := WaitForModelsReady(context.Background(), p, host, port, WaitOptions{
		Timeout:  time.Second,
		Interval: 10 * time.Millisecond,
	})

	if !res.OK {
		t.Errorf("expected ok, got reason=%s", res.Reason)
	}
}

func TestWaitForModelsReadyTimesOut(t *testing.T) {
	p := New(nil)
	res := WaitForModelsReady(context.Background(), p, "127.0.0.1", 1, WaitOptions{
		Timeout:  50 * time.Millisecond,
		Interval: 10 * time.Millisecond,
	})

	if res.OK {
		t.Error("expected timeout failure")
	}
	if res.Attempts == 0 {
		t.Error("expected at least one attempt")
	}
}
