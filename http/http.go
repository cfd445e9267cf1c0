package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// The time given to in-flight requests when the servers are shut down. Feed
// connections are hijacked and end with the context instead.
const shutdownTimeout = 10 * time.Second

// ListenAndServe runs the given servers until the context is done.
func ListenAndServe(ctx context.Context, servers ...*http.Server) {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logs.Warn(errors.New("shutting down the server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
	}()

	var wg sync.WaitGroup

	for _, s := range servers {
		wg.Add(1)

		go func(s *http.Server) {
			defer wg.Done()

			logs.WithTag("addr", s.Addr).Info("starting server")

			err := s.ListenAndServe()
			if err == nil || errors.Is(err, http.ErrServerClosed) {
				logs.WithTag("addr", s.Addr).Info("stopping server")
				return
			}

			logs.Warn(errors.New("server stopped").
				WithTag("addr", s.Addr).
				Wrap(err))
		}(s)
	}

	wg.Wait()
}

// MetricsPathFormatter returns the path label of a request metric. Requests
// that did not match a route get an empty label, and the ids in claim and map
// routes are replaced so the label cardinality stays bounded.
func MetricsPathFormatter(statusCode int, path string) string {
	if statusCode == http.StatusMovedPermanently ||
		statusCode == http.StatusBadRequest ||
		statusCode == http.StatusNotFound ||
		statusCode == http.StatusMethodNotAllowed {
		return ""
	}

	return routePattern(path)
}

// routePattern replaces the path segments that follow /claims and /maps, and
// the cell index of a reserve route, with placeholders.
func routePattern(path string) string {
	segments := strings.Split(path, "/")

	for i := 1; i < len(segments); i++ {
		switch segments[i-1] {
		case "claims":
			segments[i] = ":id"

		case "maps":
			segments[i] = ":mapID"

		case "cells":
			if i+1 < len(segments) && segments[i+1] == "reserve" {
				segments[i] = ":index"
			}
		}
	}
	return strings.Join(segments, "/")
}
