// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package app defines global configuration models and config loading helpers.
package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	envKey  = "RUN_ENV"
	nameKey = "APP_NAME"
)

// config stores the singleton configuration loaded by LoadConfig.
var config *Config

type (
	// Config is the root configuration model loaded from bin/configs/*.json.
	Config struct {
		System    SysConfig   `json:"system"`    // Application runtime settings.
		Log       LogConfig   `json:"log"`       // Logger output settings.
		Databases []Databases `json:"databases"` // Database connection settings.
		Cache     Cache       `json:"cache"`     // Cache settings.
		Redis     []Redis     `json:"redis"`     // Redis client settings.
		Monitor   Monitor     `json:"monitor"`   // Panic and alert monitor settings.
		Feishu    Feishu      `json:"feishu"`    // Feishu integration settings.
		Engine    Engine      `json:"engine"`    // Rule evaluation engine settings.
		Scheduler Scheduler   `json:"scheduler"` // Wall-clock scheduler settings.
		Telemetry Telemetry   `json:"telemetry"` // Metrics/tracing settings.
	}

	// LogConfig controls logger driver and severity level.
	LogConfig struct {
		Driver  string `json:"driver"` // Logger driver, such as "stdout" or "file".
		Level   string `json:"level"`  // Log level: debug, info, warn, error, fatal.
		LogPath string `json:"path"`   // Log file path when driver is "file".
	}

	// SysConfig stores basic runtime properties for the service.
	SysConfig struct {
		Name         string        `json:"name"`          // Service name.
		RunMode      string        `json:"run_mode"`      // Gin run mode.
		HTTPPort     string        `json:"http_port"`     // HTTP listen address.
		ReadTimeout  time.Duration `json:"read_timeout"`  // Maximum request read timeout in seconds.
		WriteTimeout time.Duration `json:"write_timeout"` // Maximum response write timeout in seconds.
		Version      string        `json:"version"`       // Service version.
		RootPath     string        `json:"root_path"`     // Runtime root path.
		DebugMode    bool          `json:"debug_mode"`    // Debug mode toggle.
		LangDir      string        `json:"lang_dir"`      // i18n language files directory.
		DefaultLang  string        `json:"default_lang"`  // Default language key.
		EnvKey       string        `json:"env_key"`       // Environment variable key that stores run env.
		DebugToken   string        `json:"debug_token"`   // Shared secret gating the read-only inspection/debug API.
		Env          string        `json:"env"`           // Resolved runtime environment.
	}

	// Databases stores one database connection profile.
	Databases struct {
		Enable                 bool          `json:"enable"`                              // Whether this DB profile is enabled.
		DbType                 string        `json:"db_type"`                             // Database type, such as mysql.
		DbHost                 string        `json:"db_host"`                             // Database host.
		DbName                 string        `json:"db_name"`                             // Database name.
		DbUsername             string        `json:"db_username,omitempty"`               // Database username.
		DbPassword             string        `json:"db_password,omitempty"`               // Database password.
		DbMaxIdleConn          int           `json:"db_max_idle_conn,omitempty"`          // Maximum idle connections.
		DbMaxOpenConn          int           `json:"db_max_open_conn,omitempty"`          // Maximum open connections.
		DbMaxLifetime          time.Duration `json:"db_max_lifetime,omitempty"`           // Connection max lifetime in hours.
		DbConnectRetryCount    int           `json:"db_connect_retry_count,omitempty"`    // Retry count when DB initialization fails.
		DbConnectRetryInterval int           `json:"db_connect_retry_interval,omitempty"` // Retry interval in seconds.
	}

	// Cache holds global cache settings.
	Cache struct {
		Driver string `json:"driver"` // Cache driver name.
		Prefix string `json:"prefix"` // Cache key prefix.
	}

	// Redis stores one Redis connection profile.
	Redis struct {
		Name        string        `json:"name"`         // Redis connection alias.
		Enable      bool          `json:"enable"`       // Whether this Redis profile is enabled.
		Host        string        `json:"host"`         // Redis host.
		Auth        string        `json:"auth"`         // Redis password or auth token.
		MaxIdle     int           `json:"max_idle"`     // Maximum idle connections.
		MaxActive   int           `json:"max_active"`   // Maximum active connections.
		IdleTimeout time.Duration `json:"idle_timeout"` // Idle timeout in minutes.
		Prefix      string        `json:"prefix"`       // Redis key prefix.
		DB          int           `json:"db"`
	}

	Monitor struct {
		PanicRobot PanicRobot `json:"panic_robot"`
	}

	PanicRobot struct {
		Enable bool        `json:"enable"`
		Wechat robotConfig `json:"wechat"`
		Feishu robotConfig `json:"feishu"`
	}

	robotConfig struct {
		Enable  bool   `json:"enable"`
		PushUrl string `json:"push_url"`
	}

	Feishu struct {
		Enable       bool   `json:"enable"`
		GroupWebhook string `json:"group_webhook"`
		AppID        string `json:"app_id"`
		AppSecret    string `json:"app_secret"`
		EncryptKey   string `json:"encrypt_key"`
	}

	// Engine controls rule-evaluation behavior shared by every automation.
	Engine struct {
		ThrottleInterval       time.Duration `json:"throttle_interval"`         // Minimum seconds between successful runs of the same automation+trigger.
		SilentNodeInterval     time.Duration `json:"silent_node_interval"`      // Seconds between NodeSilent sweeps.
		BatteryHysteresis      int           `json:"battery_hysteresis"`        // Percentage points above threshold required to re-arm BatteryLow.
		MaxLogEntries          int           `json:"max_log_entries"`           // Not read; the store trims its log table to mysqlstore.MaxLogEntries.
		MaxEvaluationRecords   int           `json:"max_evaluation_records"`    // Bounded DebugRecorder ring size.
		MaxActionsPerAutomation int          `json:"max_actions_per_automation"` // Not read by any package.
		StarterPack            StarterPack   `json:"starter_pack"`              // Optional YAML fixture seeding.
	}

	// StarterPack configures the optional YAML fixture loader.
	StarterPack struct {
		Enable     bool   `json:"enable"`      // Whether to seed automations when the store is empty.
		Path       string `json:"path"`        // Path to the starter-pack YAML file.
		WatchForChanges bool `json:"watch_for_changes"` // Whether to hot-reload the file via fsnotify.
	}

	// Scheduler controls the wall-clock scheduler and its platform bridge.
	Scheduler struct {
		TickInterval          time.Duration `json:"tick_interval"`            // How often tick(now()) runs under a system clock.
		MaxProcessPerTick     int           `json:"max_process_per_tick"`     // Not read; the scheduler caps heap pops at its fixed maxProcessPerTick (100).
		DefaultCatchUpWindow  time.Duration `json:"default_catch_up_window"`  // Not read; AllWithinWindow falls back to the scheduler's fixed 5-minute window.
		DefaultMaxCatchUp     int           `json:"default_max_catch_up"`     // Not read; the scheduler's fallback max_catch_up_executions is 20.
		FreshnessWindow       time.Duration `json:"freshness_window"`         // Not read; the "None" policy uses the scheduler's fixed 5-minute freshness window.
		PlatformMinInterval   time.Duration `json:"platform_min_interval"`    // Not read; the bridge clamps to platform.MinPeriodicInterval (15 min).
		PersistOnEveryTick    bool          `json:"persist_on_every_tick"`    // Whether to persist schedule state after each tick.
		DistributedLock       bool          `json:"distributed_lock"`        // Whether to guard schedule persistence with a Redis single-instance lock.
	}

	// Telemetry controls optional Prometheus/OpenTelemetry wiring.
	Telemetry struct {
		MetricsEnable bool   `json:"metrics_enable"` // Not read; GET /metrics is always registered on the external routes.
		TracingEnable bool   `json:"tracing_enable"`  // Whether to install an OTel tracer provider.
		ServiceName   string `json:"service_name"`    // Resource name reported to tracing exporters.
	}
)

// LoadConfig loads configuration from bin/configs/<RUN_ENV>.json.
//
// Returns:
//   - *Config: parsed configuration instance also stored globally.
//   - error: returned when reading or decoding configuration fails.
//
// Behavior:
//   - Uses "local" when RUN_ENV is not provided.
//   - Applies APP_NAME override when present.
//
// Example:
//
//	cfg, err := app.LoadConfig()
//	if err != nil {
//		panic(err)
//	}
func LoadConfig() (*Config, error) {
	var (
		runEnv     string
		appName    string
		rootPath   string
		cfgContent []byte
		err        error
	)

	runEnv = os.Getenv(envKey)
	if runEnv == "" {
		runEnv = "local"
	}

	rootPath, err = os.Getwd()
	if err != nil {
		log.Fatalf("无法获取工作目录: %v", err)
	}

	// Build the environment-specific configuration file path.
	configFilePath := filepath.Join(rootPath, "bin", "configs", fmt.Sprintf("%s.json", runEnv))
	cfgContent, err = os.ReadFile(configFilePath)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(cfgContent, &config)
	if err != nil {
		return nil, err
	}

	appName = os.Getenv(nameKey)
	if appName != "" {
		config.System.Name = appName
	}

	config.System.Env = runEnv
	config.System.RootPath = rootPath
	config.System.EnvKey = envKey
	config.System.LangDir = filepath.Join(rootPath, "bin", "lang")

	checkConfig(config)

	return config, nil
}

// checkConfig validates required runtime configuration fields.
//
// Parameters:
//   - conf: configuration object to validate.
//
// Returns:
//   - None.
func checkConfig(conf *Config) {
	if conf.System.DebugToken == "" {
		log.Panicf("DebugToken can not be null")
	}
}

// GetConfig returns the globally loaded configuration singleton.
//
// Returns:
//   - *Config: configuration instance loaded by LoadConfig.
func GetConfig() *Config {
	return config
}
