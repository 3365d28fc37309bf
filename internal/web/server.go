// Package web provides the HTTP control surface and status page.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/glade/internal/schedule"
	"github.com/sweeney/glade/internal/status"
	"github.com/sweeney/glade/internal/trigger"
)

const shutdownTimeout = 5 * time.Second

// Device is the control surface the handlers call into. Calls block until
// the device loop has processed them or ctx is done.
type Device interface {
	RequestTrigger(ctx context.Context) (trigger.Outcome, error)
	UpdateSettings(ctx context.Context, u trigger.Update) (trigger.UpdateResult, error)
	Schedule(ctx context.Context) (schedule.Schedule, error)
	History(ctx context.Context) ([]uint64, error)
}

// Server serves the control routes and the status page over HTTP.
type Server struct {
	httpServer *http.Server
	device     Device
	tracker    *status.Tracker
}

// New creates a Server. metrics may be nil.
func New(addr string, device Device, tracker *status.Tracker, metrics http.Handler) *Server {
	s := &Server{device: device, tracker: tracker}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/trigger", s.handleTrigger).Methods(http.MethodGet)
	r.HandleFunc("/getsettings", s.handleGetSettings).Methods(http.MethodGet)
	r.HandleFunc("/savesettings", s.handleSaveSettings).Methods(http.MethodPost)
	r.HandleFunc("/gettriggerlog", s.handleTriggerLog).Methods(http.MethodGet)
	r.HandleFunc("/getinfo", s.handleInfo).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handleNotFound)
	r.Use(logRequests)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log.Info().Str("addr", ln.Addr().String()).Msg("web: listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("http request")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, s.tracker.Snapshot()); err != nil {
		log.Error().Err(err).Msg("web: render index")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	data, err := status.FormatJSON(s.tracker.Snapshot())
	if err != nil {
		log.Error().Err(err).Msg("web: format status")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handleTrigger answers 200 "1" when the request activated the output and
// 204 when the device was already active.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	out, err := s.device.RequestTrigger(r.Context())
	if err != nil {
		unavailable(w, err)
		return
	}
	if !out.Accepted {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("1"))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	sch, err := s.device.Schedule(r.Context())
	if err != nil {
		unavailable(w, err)
		return
	}
	writeJSON(w, status.NewSettingsJSON(sch))
}

// handleSaveSettings applies the interval and active form fields. An
// unparseable interval counts as zero and is corrected like any other
// out-of-range value; the correction is reported in a Warning header.
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	u := trigger.Update{
		Interval: parseLooseInt(r.PostForm.Get("interval")),
		Active:   r.PostForm.Get("active") == "true",
	}

	res, err := s.device.UpdateSettings(r.Context(), u)
	if err != nil {
		var unavailableErr *UnavailableError
		if errors.As(err, &unavailableErr) {
			unavailable(w, err)
			return
		}
		log.Error().Err(err).Msg("web: save settings")
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}

	if res.IntervalCorrected {
		w.Header().Set("Warning", fmt.Sprintf(`199 glade "invalid interval, using %d"`, res.Schedule.Interval))
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("OK"))
}

func (s *Server) handleTriggerLog(w http.ResponseWriter, r *http.Request) {
	history, err := s.device.History(r.Context())
	if err != nil {
		unavailable(w, err)
		return
	}
	if history == nil {
		history = []uint64{}
	}
	writeJSON(w, status.HistoryJSON{History: history})
}

// InfoJSON is the body of /getinfo.
type InfoJSON struct {
	Firmware      string `json:"firmware"`
	Hostname      string `json:"hostname"`
	IP            string `json:"IP"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	HeapAlloc     uint64 `json:"heapAlloc"`
	Goroutines    int    `json:"goroutines"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	info := InfoJSON{
		Firmware:      snap.Config.Version,
		Hostname:      snap.Config.Hostname,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		HeapAlloc:     mem.HeapAlloc,
		Goroutines:    runtime.NumGoroutine(),
	}
	if snap.Network != nil {
		info.IP = snap.Network.IP
	}
	writeJSON(w, info)
}

// handleNotFound lists the request URI, method and arguments.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()

	var b strings.Builder
	b.WriteString("Not Found\n\n")
	fmt.Fprintf(&b, "URI: %s\n", r.URL.Path)
	fmt.Fprintf(&b, "Method: %s\n", r.Method)

	names := make([]string, 0, len(r.Form))
	for name := range r.Form {
		names = append(names, name)
	}
	sort.Strings(names)

	count := 0
	for _, name := range names {
		count += len(r.Form[name])
	}
	fmt.Fprintf(&b, "Arguments: %d\n", count)
	for _, name := range names {
		for _, v := range r.Form[name] {
			fmt.Fprintf(&b, " %s: %s\n", name, v)
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(b.String()))
}

// UnavailableError is returned by a Device that is not processing requests.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string { return "device unavailable: " + e.Err.Error() }
func (e *UnavailableError) Unwrap() error { return e.Err }

func unavailable(w http.ResponseWriter, err error) {
	log.Warn().Err(err).Msg("web: device unavailable")
	http.Error(w, "device unavailable", http.StatusServiceUnavailable)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
