package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/middleware"
)

// NewRouter собирает HTTP-поверхность api-бинаря: приём заявок, чтение
// долговечной записи, стриминг жизненного цикла, здоровье и метрики.
func NewRouter(handler *Handler, stream http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/v1/orders", middleware.Chain(
		http.HandlerFunc(handler.SubmitOrder),
		middleware.Metrics("/api/v1/orders"),
	))
	mux.Handle("GET /api/v1/orders/{id}", middleware.Chain(
		http.HandlerFunc(handler.GetOrder),
		middleware.Metrics("/api/v1/orders/{id}"),
	))
	mux.Handle("GET /ws", stream)

	mux.HandleFunc("GET /healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logging,
		middleware.Recovery,
	)
}
