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
	"github.com/SmartRentalHub/SmartRentalHub/internal/report"
)

var (
	configPath = flag.String("config", "configs/etl-job.json", "配置文件路径")
)

// etl-job 一次性跑批入口：重算 rental_summary 后退出。
// 调度（cron 等）负责保证同一时刻只有一个实例在跑。
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

	_, closer, err := tracing.InitTracer("etl-job", cfg.Jaeger.Endpoint, cfg.Jaeger.Sampler)
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
	if err := gormDB.AutoMigrate(&report.RentalSummary{}); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	pipeline, err := report.NewPipeline(gormDB, log, cfg.Report.Timezone, cfg.Report.LuxuryTypes)
	if err != nil {
		log.Fatalf("failed to init report pipeline: %v", err)
	}

	if err := pipeline.Run(context.Background()); err != nil {
		log.Errorf("etl run failed: %v", err)
		os.Exit(1)
	}
}
