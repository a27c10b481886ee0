/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/marcus-qen/orchestra/internal/metrics"
	"github.com/marcus-qen/orchestra/internal/telemetry"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observabilityMiddleware starts one trace span per request and
// records the request in the Prometheus HTTP histograms/counters.
// route is the request pattern, not the raw path, so cardinality stays
// bounded regardless of path parameters.
func observabilityMiddleware(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := telemetry.StartHTTPSpan(r.Context(), r.Method, route)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r.WithContext(ctx))

		telemetry.EndHTTPSpan(span, rec.status)
		metrics.RecordHTTPRequest(route, r.Method, strconv.Itoa(rec.status), time.Since(start))
	}
}
