package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀(如TRIPBOOKING_DATABASE_PASSWORD → database.password)
const EnvPrefix = "TRIPBOOKING"

// defaultJWTSecret 示例配置中的密钥,release模式下禁止使用
const defaultJWTSecret = "your-secret-key-change-in-production"

// Config 全局配置结构
// 设计说明：使用Viper管理配置，支持YAML文件、环境变量覆盖
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Hold      HoldConfig      `mapstructure:"hold"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	MQ        MQConfig        `mapstructure:"mq"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug | release | test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

// CORSConfig 跨域配置(官网前端直接调用占座接口)
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	ExposeHeaders    []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"` // 秒
}

// 支持的数据库驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory" // 单进程开发模式
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	ParseTime       bool          `mapstructure:"parse_time"`
	Loc             string        `mapstructure:"loc"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN 按驱动生成连接字符串
//
// MySQL：user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=true&loc=UTC
// 注意：loc参数需要URL编码（Asia/Shanghai → Asia%2FShanghai）
//
// Postgres：host=... port=... user=... password=... dbname=... sslmode=disable TimeZone=UTC
func (d DatabaseConfig) DSN() string {
	switch d.Driver {
	case DriverPostgres:
		sslmode := d.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		tz := d.Loc
		if tz == "" {
			tz = "UTC"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, sslmode, tz)
	default:
		loc := url.QueryEscape(d.Loc)
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
			d.User, d.Password, d.Host, d.Port, d.DBName, d.Charset, d.ParseTime, loc)
	}
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr 返回Redis地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret            string        `mapstructure:"secret"`
	Issuer            string        `mapstructure:"issuer"`
	AccessTokenExpire time.Duration `mapstructure:"access_token_expire"`
}

type LogConfig struct {
	Level        string `mapstructure:"level"`  // debug | info | warn | error
	Format       string `mapstructure:"format"` // console | json
	Output       string `mapstructure:"output"` // stdout | stderr | /path/to/file
	EnableCaller bool   `mapstructure:"enable_caller"`
}

// HoldConfig 占座TTL
// 每种占座类型都必须显式配置TTL
type HoldConfig struct {
	CartTTL            time.Duration `mapstructure:"cart_ttl"`
	ApprovalPendingTTL time.Duration `mapstructure:"approval_pending_ttl"`
	StaffTTL           time.Duration `mapstructure:"staff_ttl"`
	OTATTL             time.Duration `mapstructure:"ota_ttl"`
	MaxExtension       time.Duration `mapstructure:"max_extension"`
}

type InventoryConfig struct {
	LimitedThreshold int           `mapstructure:"limited_threshold"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
}

type SweepConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch_size"`
	MaxBatches int           `mapstructure:"max_batches"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

type MQConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	URL               string `mapstructure:"url"`
	Exchange          string `mapstructure:"exchange"`
	ExchangeType      string `mapstructure:"exchange_type"`
	CancellationQueue string `mapstructure:"cancellation_queue"`
}

// 资源目录来源
const (
	CatalogModeDB   = "db"
	CatalogModeHTTP = "http"
)

type CatalogConfig struct {
	Mode    string        `mapstructure:"mode"` // db | http
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// Load 加载配置文件
// 支持：
// 1. 默认加载config/config.yaml
// 2. 通过环境变量TRIPBOOKING_ENV指定环境（如config.prod.yaml）
// 3. 环境变量覆盖（如TRIPBOOKING_DATABASE_PASSWORD）
func Load() (*Config, error) {
	return LoadFrom("./config", ".")
}

// LoadFrom 从指定目录加载配置
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// 环境特定配置（如config.prod.yaml）
	if env := os.Getenv(EnvPrefix + "_ENV"); env != "" {
		v.SetConfigName("config." + env)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 环境变量绑定（database.password → TRIPBOOKING_DATABASE_PASSWORD）
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults 默认值
// 注册默认值后AutomaticEnv也能覆盖配置文件中未出现的键
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.cors.enabled", false)
	v.SetDefault("server.cors.allow_methods", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors.allow_headers", []string{"Authorization", "Content-Type", "X-Tenant-ID", "X-Request-ID"})
	v.SetDefault("server.cors.expose_headers", []string{"X-Request-ID"})
	v.SetDefault("server.cors.max_age", 600)

	v.SetDefault("database.driver", DriverMySQL)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.loc", "UTC")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("jwt.issuer", "tripbooking")
	v.SetDefault("jwt.access_token_expire", 2*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("hold.cart_ttl", 15*time.Minute)
	v.SetDefault("hold.approval_pending_ttl", 24*time.Hour)
	v.SetDefault("hold.staff_ttl", 2*time.Hour)
	v.SetDefault("hold.ota_ttl", 30*time.Minute)
	v.SetDefault("hold.max_extension", 60*time.Minute)

	v.SetDefault("inventory.limited_threshold", 5)
	v.SetDefault("inventory.cache_ttl", 10*time.Second)

	v.SetDefault("sweep.interval", time.Minute)
	v.SetDefault("sweep.batch_size", 500)
	v.SetDefault("sweep.max_batches", 20)
	v.SetDefault("sweep.lock_ttl", 55*time.Second)

	v.SetDefault("mq.enabled", false)
	v.SetDefault("mq.exchange", "tripbooking.events")
	v.SetDefault("mq.exchange_type", "topic")
	v.SetDefault("mq.cancellation_queue", "tripbooking.booking-cancelled")

	v.SetDefault("catalog.mode", CatalogModeDB)
	v.SetDefault("catalog.timeout", 3*time.Second)

	v.SetDefault("tracing.service_name", "tripbooking")
}

// validate 配置校验
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("无效的服务端口: %d", cfg.Server.Port)
	}

	if cfg.JWT.Secret == defaultJWTSecret && cfg.Server.Mode == "release" {
		return fmt.Errorf("生产环境必须修改JWT密钥")
	}

	switch cfg.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", cfg.Database.Driver)
	}

	ttls := map[string]time.Duration{
		"hold.cart_ttl":             cfg.Hold.CartTTL,
		"hold.approval_pending_ttl": cfg.Hold.ApprovalPendingTTL,
		"hold.staff_ttl":            cfg.Hold.StaffTTL,
		"hold.ota_ttl":              cfg.Hold.OTATTL,
	}
	for key, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("%s必须大于0", key)
		}
	}

	if cfg.Sweep.Interval <= 0 || cfg.Sweep.BatchSize <= 0 {
		return fmt.Errorf("sweep.interval和sweep.batch_size必须大于0")
	}
	if cfg.Sweep.LockTTL >= cfg.Sweep.Interval {
		return fmt.Errorf("sweep.lock_ttl(%s)必须小于sweep.interval(%s)", cfg.Sweep.LockTTL, cfg.Sweep.Interval)
	}

	if cfg.Catalog.Mode == CatalogModeHTTP && cfg.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.mode=http时必须配置catalog.base_url")
	}

	return nil
}
