// Package observability wires structured logging, Prometheus metrics and
// OpenTelemetry tracing behind a go-chi mux, adapted from the teacher's
// internal/observability/observability.go (SetupObservability,
// MetricsAndTracingMiddleware, WrapHandler, statusRecorder).
package observability

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds the Prometheus collectors the bridge exports.
type Metrics struct {
	MessagesReceived *prometheus.CounterVec
	MessagesPublished *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	EntitiesRegistered prometheus.Gauge
	MQTTConnected    prometheus.Gauge
}

// Observability bundles the mux, metrics and tracer the rest of the
// application needs.
type Observability struct {
	Mux     *chi.Mux
	Metrics *Metrics
	Tracer  trace.Tracer
	shutdownTracer func(context.Context) error
}

// Setup configures slog, chi, Prometheus and OpenTelemetry, mirroring the
// teacher's SetupObservability.
func Setup(serviceName string, debug bool) *Observability {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	metrics := &Metrics{
		MessagesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zigbee_bridge_messages_received_total",
			Help: "Count of MQTT messages received, by topic kind.",
		}, []string{"kind"}),
		MessagesPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "zigbee_bridge_messages_published_total",
			Help: "Count of MQTT messages published, by topic kind.",
		}, []string{"kind"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "zigbee_bridge_http_request_duration_seconds",
			Help: "HTTP request duration in seconds.",
		}, []string{"route", "method", "status"}),
		EntitiesRegistered: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zigbee_bridge_entities_registered",
			Help: "Current number of registered entities.",
		}),
		MQTTConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zigbee_bridge_mqtt_connected",
			Help: "1 if the MQTT client is currently connected.",
		}),
	}

	res, _ := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(serviceName),
	))
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer(serviceName)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(MetricsAndTracingMiddleware(metrics, tracer))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Observability{Mux: r, Metrics: metrics, Tracer: tracer, shutdownTracer: tp.Shutdown}
}

// Shutdown flushes the tracer provider.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o.shutdownTracer == nil {
		return nil
	}
	return o.shutdownTracer(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// MetricsAndTracingMiddleware records request duration per route/method/status
// and starts a span per request, mirroring the teacher's middleware.
func MetricsAndTracingMiddleware(m *Metrics, tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := tracer.Start(r.Context(), r.URL.Path)
			span.SetAttributes(attribute.String("http.method", r.Method))
			defer span.End()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			m.RequestDuration.WithLabelValues(route, r.Method, http.StatusText(rec.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}

// WrapHandler adapts a plain http.HandlerFunc for mounting on the router,
// preserved from the teacher for call sites that build handlers outside the
// chi idiom.
func WrapHandler(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(h)
}
