package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Consul    ConsulConfig    `json:"consul"`
	Jaeger    JaegerConfig    `json:"jaeger"`
	Log       LogConfig       `json:"log"`
	Report    ReportConfig    `json:"report"`
	Recommend RecommendConfig `json:"recommend"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name     string `json:"name"`      // 服务名称
	Host     string `json:"host"`      // 服务地址
	HTTPPort int    `json:"http_port"` // HTTP端口
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `json:"driver"`   // 数据库驱动
	Host     string `json:"host"`     // 数据库地址
	Port     int    `json:"port"`     // 数据库端口
	User     string `json:"user"`     // 用户名
	Password string `json:"password"` // 密码
	Database string `json:"database"` // 数据库名
	MaxIdle  int    `json:"max_idle"` // 最大空闲连接
	MaxOpen  int    `json:"max_open"` // 最大打开连接
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger配置
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
}

// ReportConfig 汇总报表（ETL）配置
type ReportConfig struct {
	// Timezone 报表时间戳统一换算到的时区（IANA 名称），
	// 保证不同部署区域跑批产出的 last_updated 一致。
	Timezone string `json:"timezone"`
	// LuxuryTypes 归类为 Luxury 的车型列表（大小写不敏感），其余归 Economy。
	// 目前只有两档，扩展更多档位时在这里加配置而不是改代码。
	LuxuryTypes []string `json:"luxury_types"`
}

// RecommendConfig 推荐配置
type RecommendConfig struct {
	TopN int `json:"top_n"` // 推荐结果条数上限
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		// 如果配置文件不存在，使用默认配置
		if _, err = os.Stat(configPath); os.IsNotExist(err) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			err = nil
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}

		applyDefaults(globalConfig)
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// applyDefaults 对缺省字段补默认值（配置文件允许只写一部分）。
func applyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Report.Timezone == "" {
		cfg.Report.Timezone = "America/New_York"
	}
	if len(cfg.Report.LuxuryTypes) == 0 {
		cfg.Report.LuxuryTypes = []string{"suv"}
	}
	if cfg.Recommend.TopN <= 0 {
		cfg.Recommend.TopN = 5
	}
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "rental-service",
			Host:     "0.0.0.0",
			HTTPPort: 8080,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "smartrentalhub",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "http://localhost:14268/api/traces",
			Sampler:  1.0,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
		Report: ReportConfig{
			Timezone:    "America/New_York",
			LuxuryTypes: []string{"suv"},
		},
		Recommend: RecommendConfig{
			TopN: 5,
		},
	}
}
