package tracing

import (
	"context"
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// InitTracer 初始化Jaeger Tracer
func InitTracer(serviceName, endpoint string, sampler float64) (opentracing.Tracer, io.Closer, error) {
	cfg := &jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: sampler,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans:           true,
			LocalAgentHostPort: endpoint,
		},
	}

	tracer, closer, err := cfg.NewTracer(jaegercfg.Logger(jaeger.StdLogger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init jaeger tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

// StartSpan 从 ctx 派生一个业务 span（预订、跑批入口统一用这个）。
// 没有初始化 tracer 时 opentracing 会退化为 NoopTracer，调用侧不用判空。
func StartSpan(ctx context.Context, operation string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, operation)
}
