package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/SmartRentalHub/SmartRentalHub/internal/common/config"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/db"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/logger"
	"github.com/SmartRentalHub/SmartRentalHub/internal/common/tracing"
	"github.com/SmartRentalHub/SmartRentalHub/internal/recommend"
)

var (
	configPath = flag.String("config", "configs/recommendation-job.json", "配置文件路径")
)

// recommendation-job 一次性跑批入口：重算 vehicle_pair_scores 后退出。
// 与 etl-job 一样依赖外部调度保证互斥。
func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	_, closer, err := tracing.InitTracer("recommendation-job", cfg.Jaeger.Endpoint, cfg.Jaeger.Sampler)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}

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
	if err := gormDB.AutoMigrate(&recommend.VehiclePairScore{}); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	engine := recommend.NewEngine(gormDB, log, nil)
	if err := engine.Run(context.Background()); err != nil {
		log.Errorf("recommendation run failed: %v", err)
		os.Exit(1)
	}
}
