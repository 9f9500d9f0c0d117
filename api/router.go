/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/facebookincubator/timeapi/stats"
)

// NewRouter registers the routes and the middleware stack. Everything the
// service exposes is a GET; preflight OPTIONS is answered by the CORS
// middleware.
func NewRouter(handler *Handler, st *stats.Stats) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(st))
	r.Use(recoverMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(corsMiddleware)
	r.Use(timeoutMiddleware)
	r.Use(bodyLimitMiddleware)

	r.Get("/", handler.root)
	r.Get("/times", handler.times)
	r.Get("/health", handler.health)
	r.Get("/ready", handler.ready)

	return r
}
