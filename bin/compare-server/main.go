package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	diffimage "snapshot-matcher/internal/diff/image"
	"snapshot-matcher/internal/env"
	"snapshot-matcher/internal/myhttp"
	"snapshot-matcher/internal/telemetry"
	"strconv"
	"syscall"
	"time"

	pyroscopepprof "github.com/grafana/pyroscope-go/http/pprof"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
	"golang.org/x/xerrors"
)

type Server struct {
	address                string
	terminationGracePeriod time.Duration
	lameduck               time.Duration
	keepAlive              bool
	maxConnections         int
	maxUploadBytes         int64

	metrics *telemetry.Metrics
}

func NewServer() *Server {
	return &Server{
		address:                env.OrDefault("ADDRESS", "0.0.0.0:8383"),
		terminationGracePeriod: env.OrDefault("TERMINATION_GRACE_PERIOD", 10*time.Second),
		lameduck:               env.OrDefault("LAMEDUCK", 1*time.Second),
		keepAlive:              env.OrDefault("HTTP_KEEPALIVE", true),
		maxConnections:         env.OrDefault("MAX_CONNECTIONS", 65532),
		maxUploadBytes:         env.OrDefault("MAX_UPLOAD_BYTES", int64(32<<20)),
	}
}

var Debug = false

func (s *Server) Start(ctx context.Context) error {
	t, err := telemetry.Start(ctx, "compare-server")
	if err != nil {
		return err
	}
	s.metrics = t.Metrics

	logger, err := telemetry.NewLogger(os.Stderr, Debug)
	if err != nil {
		return err
	}

	mux := s.routes(logger)

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return xerrors.Errorf("failed to listen on address %s: %w", s.address, err)
	}

	server := &http.Server{
		Handler: mux,
	}
	server.SetKeepAlivesEnabled(s.keepAlive)

	go func() {
		if err := server.Serve(netutil.LimitListener(listener, s.maxConnections)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to serve HTTP", "error", err)
		}
	}()
	logger.Info("listening", "address", s.address)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit
	time.Sleep(s.lameduck)

	ctx, cancel := context.WithTimeout(ctx, s.terminationGracePeriod)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown server: %w", err)
	}

	return t.Shutdown(ctx)
}

func (s *Server) routes(logger *slog.Logger) *myhttp.Router {
	mux := myhttp.NewRouter(logger, s.metrics.HTTPRequestsDurationMicroSeconds)

	mux.HandleFuncWithMiddleware("POST /compare", s.handleCompare)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(http.StatusText(http.StatusOK)))
	})

	mux.Handle("GET /metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	))

	if Debug {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
		mux.HandleFunc("GET /debug/pprof/profile", pyroscopepprof.Profile)
	}

	return mux
}

type CompareResponse struct {
	Match      bool    `json:"match"`
	DiffData   string  `json:"diffData,omitempty"`
	DiffAmount float64 `json:"diffAmount"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	logger := myhttp.Logger(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tolerance, err := parseTolerance(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	baselineData, err := readFormFile(r, "baseline")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	targetData, err := readFormFile(r, "target")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	matcher, err := diffimage.NewToleranceMatcher(tolerance)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	match, err := matcher.MatchEncoded(baselineData, targetData)
	if err != nil {
		s.metrics.RecordComparison(r.Context(), telemetry.OutcomeError)
		if errors.Is(err, diffimage.DecodeError) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		logger.Error("failed to compare images", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	response := CompareResponse{Match: match}
	if match {
		s.metrics.RecordComparison(r.Context(), telemetry.OutcomeMatch)
	} else {
		s.metrics.RecordComparison(r.Context(), telemetry.OutcomeMismatch)

		diffData, diffAmount, err := diff(tolerance, baselineData, targetData)
		if err != nil {
			logger.Error("failed to generate diff", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		response.DiffData = base64.StdEncoding.EncodeToString(diffData)
		response.DiffAmount = diffAmount
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func parseTolerance(r *http.Request) (diffimage.Tolerance, error) {
	tolerance := diffimage.DefaultTolerance
	for field, dst := range map[string]*float64{
		"perPixelTolerance": &tolerance.PerPixel,
		"overallTolerance":  &tolerance.Overall,
	} {
		v := r.FormValue(field)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return diffimage.Tolerance{}, xerrors.Errorf("invalid %s: %q", field, v)
		}
		*dst = f
	}
	return tolerance, tolerance.Validate()
}

func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

func diff(tolerance diffimage.Tolerance, baselineData []byte, targetData []byte) ([]byte, float64, error) {
	baselineImage, _, err := diffimage.Decode(baselineData)
	if err != nil {
		return nil, 0, err
	}
	targetImage, _, err := diffimage.Decode(targetData)
	if err != nil {
		return nil, 0, err
	}

	diffResult := diffimage.NewPixelDiff(tolerance).Calculate(baselineImage, targetImage)

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, diffResult.Image); err != nil {
		return nil, 0, err
	}
	return buffer.Bytes(), diffResult.DiffAmount, nil
}

func main() {
	ctx := context.Background()

	server := NewServer()
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
