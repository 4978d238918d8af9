package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/SmartRentalHub/SmartRentalHub/internal/common/config"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/db"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/logger"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/middleware"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/server"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/tracing"
	"github.com/SmartRentalHub/SmartRentalHub/internal/recommend"
	"github.com/SmartRentalHub/SmartRentalHub/internal/rental"
	"github.com/SmartRentalHub/SmartRentalHub/internal/report"
	"github.com/SmartRentalHub/SmartRentalHub/internal/user"
	"github.com/SmartRentalHub/SmartRentalHub/internal/vehicle"
)

var (
	configPath  = flag.String("config", "configs/rental-service.json", "配置文件路径")
	consulKVKey = flag.String("consul-kv", "", "从 Consul KV 读取配置的 key（留空用本地文件）")
)

func main() {
	flag.Parse()

	// 加载配置（优先 Consul KV，其次本地文件）
	var cfg *config.Config
	var err error
	if *consulKVKey != "" {
		pre, preErr := config.LoadConfig(*configPath)
		if preErr != nil {
			panic(fmt.Sprintf("failed to load config: %v", preErr))
		}
		cfg, err = config.LoadConfigFromConsulKV(pre.Consul.Host, pre.Consul.Port, *consulKVKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	gormDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to init mysql: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&user.User{},
		&vehicle.Vehicle{},
		&rental.Rental{},
		&report.RentalSummary{},
		&recommend.VehiclePairScore{},
	); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	// 组装业务
	rentalSvc := rental.NewService(gormDB, log, cfg.Recommend.TopN)
	userSvc := user.NewService(user.NewRepo(gormDB))
	pipeline, err := report.NewPipeline(gormDB, log, cfg.Report.Timezone, cfg.Report.LuxuryTypes)
	if err != nil {
		log.Fatalf("failed to init report pipeline: %v", err)
	}
	engine := recommend.NewEngine(gormDB, log, nil)

	// 预订接口限流：容量 20，每秒回填 10
	bookLimiter := middleware.NewTokenBucket(20, 10)

	mux := http.NewServeMux()
	rental.NewHTTPHandler(rentalSvc, bookLimiter).Register(mux)
	user.NewHTTPHandler(userSvc).Register(mux)
	report.NewHTTPHandler(pipeline).Register(mux)
	recommend.NewHTTPHandler(engine).Register(mux)

	// Consul KV 配置漂移检测（带熔断，KV 挂了不影响服务本体）
	if *consulKVKey != "" {
		go watchConsulConfig(cfg, log, *consulKVKey)
	}

	if err := server.RunHTTPServer(cfg, log, mux); err != nil {
		log.Fatalf("rental-service exited with error: %v", err)
	}
}

// watchConsulConfig 周期性拉取 Consul KV 配置，发现与进程内配置不一致时告警。
// 配置不做热更新，提示运维重启生效即可。
func watchConsulConfig(current *config.Config, log logger.Logger, key string) {
	breaker := middleware.NewCircuitBreaker("consul-kv", 5, time.Minute)
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		err := breaker.Call(context.Background(), func() error {
			latest, err := config.LoadConfigFromConsulKV(current.Consul.Host, current.Consul.Port, key)
			if err != nil {
				return err
			}
			if !reflect.DeepEqual(latest, current) {
				log.Warn("config drift detected in Consul KV, restart to apply")
			}
			return nil
		})
		if err != nil && err != middleware.ErrCircuitOpen {
			log.Warnf("consul kv config check failed: %v", err)
		}
	}
}
