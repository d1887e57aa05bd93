package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/metrics"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Chain оборачивает handler цепочкой middleware; первый аргумент
// оказывается внешним слоем.
func Chain(handler http.Handler, wrappers ...func(http.Handler) http.Handler) http.Handler {
	for i := len(wrappers) - 1; i >= 0; i-- {
		handler = wrappers[i](handler)
	}
	return handler
}

// RequestID гарантирует X-Request-Id у каждого запроса, эхо в ответе
// и прокидывает идентификатор в контекст логгера.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestID := request.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		writer.Header().Set(requestIDHeader, requestID)
		ctx := logger.ContextWithTraceID(request.Context(), requestID)

		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// Logging пишет одну строку на запрос с длительностью и статусом.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

		next.ServeHTTP(recorder, request)

		logger.Info(request.Context(), "http request",
			zap.String("method", request.Method),
			zap.String("path", request.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

// Recovery превращает панику обработчика в 500 вместо падения процесса.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error(request.Context(), "panic recovered",
					zap.Any("panic", recovered),
					zap.String("path", request.URL.Path),
				)
				http.Error(writer, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(writer, request)
	})
}

// Metrics считает запросы и их длительность по маршруту.
func Metrics(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			started := time.Now()
			recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

			next.ServeHTTP(recorder, request)

			metrics.HTTPRequestsTotal.
				WithLabelValues(request.Method, route, strconv.Itoa(recorder.status)).
				Inc()
			metrics.HTTPRequestDuration.
				WithLabelValues(request.Method, route).
				Observe(time.Since(started).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.written {
		r.status = status
		r.written = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(data []byte) (int, error) {
	r.written = true
	return r.ResponseWriter.Write(data)
}

// Hijack нужен WebSocket-апгрейду, проходящему через эту же цепочку.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
