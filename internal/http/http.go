// Copyright 2024 The Cayley Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http serves a read-only view of a schema catalog.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cayleygraph/quad/nquads"
	"github.com/cockroachdb/errors"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cayleygraph/catalog/exporter"
	"github.com/cayleygraph/catalog/internal/gephi"
	"github.com/cayleygraph/catalog/schema"
)

type Config struct {
	// Timeout bounds requests that read the record store.
	Timeout time.Duration
	// Namespace of exported IRIs. Defaults to exporter.DefaultNamespace.
	Namespace string
}

type API struct {
	config *Config
	cat    *schema.Catalog
}

func jsonResponse(w http.ResponseWriter, code int, err interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"error": `))
	data, _ := json.Marshal(fmt.Sprint(err))
	w.Write(data)
	w.Write([]byte(`}`))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		jsonResponse(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, schema.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (api *API) context(r *http.Request) (context.Context, context.CancelFunc) {
	if api.config.Timeout > 0 {
		return context.WithTimeout(r.Context(), api.config.Timeout)
	}
	return context.WithCancel(r.Context())
}

func (api *API) ServeSchema(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	if err := exporter.ExportJSON(w, api.cat.Definition()); err != nil {
		jsonResponse(w, http.StatusInternalServerError, err)
	}
}

func (api *API) ServeQuads(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/n-quads")
	qw := nquads.NewWriter(w)
	exp := exporter.NewExporter(qw, api.config.Namespace)
	if err := exp.ExportSnapshot(api.cat.Snapshot()); err != nil {
		jsonResponse(w, http.StatusInternalServerError, err)
		return
	}
	qw.Close()
}

func (api *API) ServeClasses(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	classes := api.cat.Snapshot().Classes()
	out := make([]ClassSummary, 0, len(classes))
	for _, c := range classes {
		out = append(out, Summarize(c))
	}
	writeJSON(w, out)
}

func (api *API) ServeClass(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	ctx, cancel := api.context(r)
	defer cancel()
	c, err := api.cat.Class(ctx, params.ByName("name"))
	if err != nil {
		jsonResponse(w, errorCode(err), err)
		return
	}
	writeJSON(w, Describe(c))
}

func (api *API) ServeCount(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	ctx, cancel := api.context(r)
	defer cancel()
	poly := true
	if s := r.URL.Query().Get("polymorphic"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			jsonResponse(w, http.StatusBadRequest, err)
			return
		}
		poly = v
	}
	name := params.ByName("name")
	n, err := api.cat.Count(ctx, name, poly)
	if err != nil {
		jsonResponse(w, errorCode(err), err)
		return
	}
	writeJSON(w, map[string]interface{}{"class": name, "polymorphic": poly, "count": n})
}

func (api *API) ServeIndexes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	indexes := api.cat.Snapshot().Indexes()
	out := make([]IndexInfo, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, IndexInfo{
			Name:       idx.Name,
			Class:      idx.Class,
			Type:       string(idx.Type),
			Fields:     idx.Fields,
			Partitions: idx.Partitions,
		})
	}
	writeJSON(w, out)
}

func (api *API) ServeProperties(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, api.cat.Snapshot().GlobalProperties())
}

// NewRouter returns the routes of the read-only catalog endpoint.
func NewRouter(cat *schema.Catalog, cfg *Config) *httprouter.Router {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = exporter.DefaultNamespace
	}
	api := &API{config: cfg, cat: cat}
	r := httprouter.New()
	r.OPTIONS("/*path", HandlePreflight)
	r.GET("/health", HandleHealth)
	r.GET("/api/v1/schema", CORS(LogRequest("schema", api.ServeSchema)))
	r.GET("/api/v1/schema.nq", CORS(LogRequest("quads", api.ServeQuads)))
	r.GET("/api/v1/classes", CORS(LogRequest("classes", api.ServeClasses)))
	r.GET("/api/v1/classes/:name", CORS(LogRequest("class", api.ServeClass)))
	r.GET("/api/v1/classes/:name/count", CORS(LogRequest("count", api.ServeCount)))
	r.GET("/api/v1/indexes", CORS(LogRequest("indexes", api.ServeIndexes)))
	r.GET("/api/v1/properties", CORS(LogRequest("properties", api.ServeProperties)))
	gs := &gephi.GraphStreamHandler{Catalog: cat}
	r.GET("/api/v1/gephi/gs", CORS(LogRequest("gephi", gs.ServeHTTP)))
	r.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
