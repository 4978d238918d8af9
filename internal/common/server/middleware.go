package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/SmartRentalHub/SmartRentalHub/internal/common/logger"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// Recovery 防止 handler panic 把进程打崩，并记录栈信息。
func Recovery(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if log != nil {
					log.Errorf("panic in http path=%s err=%v stack=%s", r.URL.Path, rec, string(debug.Stack()))
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusRecorder 捕获写出的状态码，供访问日志使用。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// AccessLog 记录每个 HTTP 请求的耗时/状态码。
func AccessLog(log logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		cost := time.Since(start)

		if log == nil {
			return
		}
		fields := map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": sr.status,
			"cost":   cost.String(),
		}
		if sr.status >= http.StatusInternalServerError {
			log.WithFields(fields).Warn("http request failed")
		} else {
			log.WithFields(fields).Info("http request ok")
		}
	})
}

// Tracing 基于 OpenTracing 的最小 server middleware：
// - 从请求头提取上游 span context（uber-trace-id 等，取决于注入格式）
// - 创建 server span 并注入 ctx，业务侧用 tracing.StartSpan 挂子 span
func Tracing(serviceName string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := opentracing.GlobalTracer()

		var opts []opentracing.StartSpanOption
		if parent, err := tracer.Extract(
			opentracing.HTTPHeaders,
			opentracing.HTTPHeadersCarrier(r.Header),
		); err == nil {
			opts = append(opts, opentracing.ChildOf(parent))
		}
		opts = append(opts, ext.SpanKindRPCServer)

		span := tracer.StartSpan(fmt.Sprintf("%s %s", r.Method, r.URL.Path), opts...)
		defer span.Finish()
		span.SetTag("service", serviceName)

		ctx := opentracing.ContextWithSpan(r.Context(), span)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
