package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cayleygraph/catalog/clog"
)

var mRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "catalog_http_requests",
	Help: "Number of served HTTP requests.",
}, []string{"route", "code"})

type statusWriter struct {
	http.ResponseWriter
	code int
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{w, http.StatusOK}
}

func (w *statusWriter) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
	w.code = code
}

func getAddress(req *http.Request) string {
	addr := req.Header.Get("X-Real-IP")
	if addr == "" {
		addr = req.Header.Get("X-Forwarded-For")
		if addr == "" {
			addr = req.RemoteAddr
		}
	}
	return addr
}

// LogRequest logs a request and counts it under the given route name.
func LogRequest(route string, handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		start := time.Now()
		sw := newStatusWriter(w)
		if clog.V(2) {
			clog.Infof("started %s %s for %s", req.Method, req.URL.Path, getAddress(req))
		}
		handler(sw, req, params)
		mRequests.WithLabelValues(route, strconv.Itoa(sw.code)).Inc()
		if clog.V(1) {
			clog.Infof("completed %v %s %s in %v", sw.code, http.StatusText(sw.code), req.URL.Path, time.Since(start))
		}
	}
}
