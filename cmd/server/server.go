package main

import (
	"context"
	"net"
	"net/http"
	"time"
)

// newAPIServer builds the public API server. Request contexts derive from a
// base context that is cancelled as soon as Shutdown starts, so open SSE
// responses end instead of holding shutdown until its deadline.
// No WriteTimeout: SSE responses stay open for the life of a stream.
func newAPIServer(addr string, handler http.Handler) *http.Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}
