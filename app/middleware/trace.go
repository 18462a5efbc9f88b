package appMiddleware

import (
	"net/http"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	appLogger "github.com/FACorreiaa/go-blog-api/app/logger"
)

// TraceRoute overwrites the raw url.path that otelhttp records on the server
// span with a token-free value, and adds the matched chi route. It must run
// inside the otelhttp handler and before routing.
func TraceRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := trace.SpanFromContext(r.Context())
		span.SetAttributes(semconv.URLPath(appLogger.RedactPath(r.URL.Path)))

		next.ServeHTTP(w, r)

		route := appLogger.RoutePath(r)
		span.SetAttributes(semconv.URLPath(route), semconv.HTTPRoute(route))
	})
}
