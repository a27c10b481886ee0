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

	"golang.org/x/crypto/bcrypt"
)

// basicAuthMiddleware enforces the single-operator credential from
// config when auth is enabled. /health and /ready stay open so
// orchestration layers can probe liveness without credentials.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	if !s.cfg.AuthEnabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/ready" {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || user != s.cfg.OperatorUser || bcrypt.CompareHashAndPassword([]byte(s.cfg.OperatorPwHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="orchestra"`)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "operator credentials required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
