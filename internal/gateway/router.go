package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// NewRouter exposes the public surface of the orders and inventory
// services behind one address.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(routeTag)
	r.Use(middleware.Recoverer)

	orders := handler.Orders()
	products := handler.Products()

	r.Get("/products", products)
	r.Get("/products/{productId}", products)

	r.Post("/checkout", orders)
	r.Get("/orders", orders)
	r.Get("/orders/{id}", orders)
	r.Get("/orders/{id}/status-view", orders)
	r.Patch("/orders/{id}/status", orders)
	r.Post("/vendor/order-items/{id}/decision", orders)

	r.Route("/carts", func(r chi.Router) {
		r.Post("/", orders)
		r.Get("/{id}", orders)
		r.Delete("/{id}", orders)
		r.Post("/{id}/items", orders)
		r.Patch("/{id}/items/{itemId}", orders)
		r.Delete("/{id}/items/{itemId}", orders)
	})

	return r
}

// routeTag names the server span after the chi route pattern, which is
// only known once routing has finished.
func routeTag(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			return
		}
		span := trace.SpanFromContext(r.Context())
		span.SetName(r.Method + " " + pattern)
		span.SetAttributes(semconv.HTTPRoute(pattern))
	})
}
