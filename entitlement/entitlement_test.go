package entitlement

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestStaticGate(t *testing.T) {
	c := qt.New(t)

	c.Assert(StaticGate(true).IsEntitled(context.Background()), qt.IsTrue)
	c.Assert(StaticGate(false).IsEntitled(context.Background()), qt.IsFalse)
}

func TestRemoteGate(t *testing.T) {
	c := qt.New(t)

	var checks atomic.Int64
	paying := atomic.Bool{}
	paying.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks.Add(1)
		c.Check(r.Header.Get("Authorization"), qt.Equals, "Bearer license-key-123")
		w.Header().Set("Content-Type", "application/json")
		if paying.Load() {
			_, _ = w.Write([]byte(`{"paying":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"paying":false}`))
	}))
	defer server.Close()

	gate := NewRemoteGate(server.URL, "license-key-123", 50*time.Millisecond)
	ctx := context.Background()

	c.Assert(gate.IsEntitled(ctx), qt.IsTrue)

	// answers are cached within the recheck interval
	c.Assert(gate.IsEntitled(ctx), qt.IsTrue)
	c.Assert(checks.Load(), qt.Equals, int64(1))

	// a license lapse propagates after the interval
	paying.Store(false)
	time.Sleep(60 * time.Millisecond)
	c.Assert(gate.IsEntitled(ctx), qt.IsFalse)
}

func TestRemoteGateKeepsLastKnownOnError(t *testing.T) {
	c := qt.New(t)

	failing := atomic.Bool{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"paying":true}`))
	}))
	defer server.Close()

	gate := NewRemoteGate(server.URL, "license-key-123", 50*time.Millisecond)
	ctx := context.Background()

	c.Assert(gate.IsEntitled(ctx), qt.IsTrue)

	// a transient server failure keeps the last validated answer
	failing.Store(true)
	time.Sleep(60 * time.Millisecond)
	c.Assert(gate.IsEntitled(ctx), qt.IsTrue)
}

func TestRemoteGateFailsClosedWithoutValidation(t *testing.T) {
	c := qt.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	// a gate that never reached a working license server is not entitled
	gate := NewRemoteGate(server.URL, "license-key-123", 50*time.Millisecond)
	c.Assert(gate.IsEntitled(context.Background()), qt.IsFalse)
}
