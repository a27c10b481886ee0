/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package dashboard

import "net/http"

// maxBodyBytes is the maximum allowed size for POST/PUT request bodies (1 MiB).
const maxBodyBytes int64 = 1 << 20

// maxBodySizeMiddleware rejects write requests whose length is unknown
// (ContentLength -1, which net/http reports for chunked bodies) with
// 411 and those whose declared Content-Length exceeds maxBodyBytes with
// 413, then wraps the body with http.MaxBytesReader so no handler reads
// past maxBodyBytes.
func maxBodySizeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.ContentLength < 0 {
				writeJSONError(w, http.StatusLengthRequired, "length_required", "content-length must be a non-negative integer")
				return
			}
			if r.ContentLength > maxBodyBytes {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large (limit 1MB)")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
