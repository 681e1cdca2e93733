package main

import (
	"context"
	"errors"
	"net/http"
	"pagobot/transport"
	"testing"
	"time"
)

func TestServeHTTPReportsDroppedBridge(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	done := make(chan struct{})
	close(done)

	errc := make(chan error, 1)
	go func() { errc <- serveHTTP(context.Background(), srv, done) }()
	select {
	case err := <-errc:
		if !errors.Is(err, transport.ErrBridgeClosed) {
			t.Fatalf("serveHTTP = %v, want ErrBridgeClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serveHTTP did not return after the bridge closed")
	}
}

func TestServeHTTPStopsCleanlyOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errc := make(chan error, 1)
	go func() { errc <- serveHTTP(ctx, srv, make(chan struct{})) }()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("serveHTTP = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serveHTTP did not return after cancel")
	}
}
