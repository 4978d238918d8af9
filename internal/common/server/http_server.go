package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SmartRentalHub/SmartRentalHub/internal/common/config"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/discovery"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/logger"
	"github.com/google/uuid"
)

type RunHTTPOptions struct {
	ShutdownTimeout time.Duration
}

func defaultRunHTTPOptions() RunHTTPOptions {
	return RunHTTPOptions{
		ShutdownTimeout: 5 * time.Second,
	}
}

// RunHTTPServer 统一的 HTTP 服务启动模板：
// - 初始化 http.Server（含 recovery / 访问日志 middleware）
// - 注册 /healthz 探活端点
// - 注册到 Consul（HTTP check）
// - 优雅退出
func RunHTTPServer(cfg *config.Config, log logger.Logger, mux *http.ServeMux, opts ...func(*RunHTTPOptions)) error {
	if cfg == nil {
		return fmt.Errorf("cfg is nil")
	}
	if log == nil {
		return fmt.Errorf("log is nil")
	}
	if mux == nil {
		mux = http.NewServeMux()
	}

	o := defaultRunHTTPOptions()
	for _, apply := range opts {
		if apply != nil {
			apply(&o)
		}
	}

	// 初始化 Consul 客户端（失败不阻塞服务启动）
	consulClient, err := discovery.NewConsulClient(cfg.Consul.Host, cfg.Consul.Port)
	if err != nil {
		log.Warnf("failed to connect to Consul: %v", err)
		consulClient = nil
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	// 统一的 middleware 链（由外到内执行）
	handler := Recovery(log, AccessLog(log, Tracing(cfg.Server.Name, mux)))

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 注册到 Consul（成功才 defer 注销）
	if consulClient != nil {
		serviceID := fmt.Sprintf("%s-%s", cfg.Server.Name, uuid.New().String())
		registry := discovery.NewServiceRegistry(
			consulClient,
			serviceID,
			cfg.Server.Name,
			cfg.Server.Host,
			cfg.Server.HTTPPort,
			[]string{"http"},
		)
		if err := registry.Register(); err != nil {
			log.Warnf("failed to register service to Consul: %v", err)
		} else {
			log.Infof("Service registered to Consul: %s", serviceID)
			defer func() {
				if err := registry.Deregister(); err != nil {
					log.Warnf("failed to deregister service from Consul: %v", err)
				}
			}()
		}
	}

	log.Infof("%s starting on %s:%d", cfg.Server.Name, cfg.Server.Host, cfg.Server.HTTPPort)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infof("received signal %v, shutting down...", sig)
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http serve failed: %w", err)
		}
		return nil
	}

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), o.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("http shutdown timeout, forcing close: %v", err)
		_ = srv.Close()
	} else {
		log.Info("http server stopped gracefully")
	}

	return nil
}

// WithShutdownTimeout 修改优雅退出等待时间。
func WithShutdownTimeout(d time.Duration) func(*RunHTTPOptions) {
	return func(o *RunHTTPOptions) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}
