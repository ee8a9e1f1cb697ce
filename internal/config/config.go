package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración del proceso. Se carga una vez al arrancar y no
// se modifica en runtime.
type Config struct {
	App struct {
		// dev | staging | prod
		Env  string `yaml:"env"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Log struct {
		// debug | info | warn | error
		Level string `yaml:"level"`
		// dev (consola) | prod (JSON). Vacío = según app.env
		Env string `yaml:"env"`
	} `yaml:"log"`

	Storage struct {
		Primary PoolConfig `yaml:"primary"`
		// Replica vacía = mismos parámetros que primary (un solo nodo).
		Replica             PoolConfig    `yaml:"replica"`
		HealthCheckInterval time.Duration `yaml:"health_check_interval"`
		AutoMigrate         bool          `yaml:"auto_migrate"`
	} `yaml:"storage"`

	Blob struct {
		// s3 | fs | memory
		Kind string `yaml:"kind"`
		S3   struct {
			Bucket          string `yaml:"bucket"`
			Region          string `yaml:"region"`
			Endpoint        string `yaml:"endpoint"`
			BaseURL         string `yaml:"base_url"`
			Prefix          string `yaml:"prefix"`
			AccessKeyID     string `yaml:"access_key_id"`
			SecretAccessKey string `yaml:"secret_access_key"`
			UsePathStyle    bool   `yaml:"use_path_style"`
		} `yaml:"s3"`
		FS struct {
			Root string `yaml:"root"`
		} `yaml:"fs"`
		Retry struct {
			Attempts int           `yaml:"attempts"`
			Delay    time.Duration `yaml:"delay"`
		} `yaml:"retry"`
	} `yaml:"blob"`

	Purge struct {
		GracePeriod    time.Duration `yaml:"grace_period"`
		AccountTimeout time.Duration `yaml:"account_timeout"`
		BatchSize      int           `yaml:"batch_size"`
	} `yaml:"purge"`

	Scheduler struct {
		Enabled bool `yaml:"enabled"`
		// HH:MM en Location
		DailyAt  string `yaml:"daily_at"`
		Location string `yaml:"location"`
		// memory | redis
		LockKind string        `yaml:"lock_kind"`
		LockTTL  time.Duration `yaml:"lock_ttl"`
		LockName string        `yaml:"lock_name"`
	} `yaml:"scheduler"`

	Lock struct {
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"lock"`

	Ops struct {
		Addr string `yaml:"addr"`
	} `yaml:"ops"`
}

// PoolConfig parámetros de un pool (primary o replica).
type PoolConfig struct {
	// postgres | mysql | memory
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

func (p PoolConfig) empty() bool { return p.Driver == "" && p.DSN == "" }

// DefaultGracePeriod es el período entre el soft delete y la purga (90 días).
const DefaultGracePeriod = 90 * 24 * time.Hour

// Load lee el YAML de path (si path no está vacío), aplica defaults y
// overrides de entorno y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyDefaults completa valores vacíos.
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "mapping"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Env == "" {
		c.Log.Env = "dev"
		if c.App.Env == "prod" {
			c.Log.Env = "prod"
		}
	}

	if c.Storage.Primary.Driver == "" {
		c.Storage.Primary.Driver = "memory"
	}
	poolDefaults(&c.Storage.Primary)
	if c.Storage.Replica.empty() {
		c.Storage.Replica = c.Storage.Primary
	}
	poolDefaults(&c.Storage.Replica)

	if c.Blob.Kind == "" {
		c.Blob.Kind = "memory"
	}
	if c.Blob.Retry.Attempts == 0 {
		c.Blob.Retry.Attempts = 3
	}
	if c.Blob.Retry.Delay == 0 {
		c.Blob.Retry.Delay = 500 * time.Millisecond
	}

	if c.Purge.GracePeriod == 0 {
		c.Purge.GracePeriod = DefaultGracePeriod
	}
	if c.Purge.AccountTimeout == 0 {
		c.Purge.AccountTimeout = 2 * time.Minute
	}
	if c.Purge.BatchSize == 0 {
		c.Purge.BatchSize = 500
	}

	if c.Scheduler.DailyAt == "" {
		c.Scheduler.DailyAt = "00:00"
	}
	if c.Scheduler.Location == "" {
		c.Scheduler.Location = "Local"
	}
	if c.Scheduler.LockKind == "" {
		c.Scheduler.LockKind = "memory"
	}
	if c.Scheduler.LockTTL == 0 {
		c.Scheduler.LockTTL = time.Hour
	}
	if c.Scheduler.LockName == "" {
		c.Scheduler.LockName = "retention-purge"
	}
	if c.Lock.Redis.Prefix == "" {
		c.Lock.Redis.Prefix = "mapping:lock:"
	}

	if c.Ops.Addr == "" {
		c.Ops.Addr = ":9090"
	}
}

func poolDefaults(p *PoolConfig) {
	if p.MaxOpenConns == 0 {
		p.MaxOpenConns = 10
	}
	if p.MaxIdleConns == 0 {
		p.MaxIdleConns = 2
	}
	if p.ConnMaxLifetime == 0 {
		p.ConnMaxLifetime = 30 * time.Minute
	}
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = 10 * time.Second
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP / LOG
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_ENV"); ok {
		c.Log.Env = strings.ToLower(v)
	}

	// STORAGE
	envPool("STORAGE_PRIMARY", &c.Storage.Primary)
	envPool("STORAGE_REPLICA", &c.Storage.Replica)
	if v, ok := getEnvDur("STORAGE_HEALTH_CHECK_INTERVAL"); ok {
		c.Storage.HealthCheckInterval = v
	}
	if v, ok := getEnvBool("STORAGE_AUTO_MIGRATE"); ok {
		c.Storage.AutoMigrate = v
	}

	// BLOB
	if v, ok := getEnvStr("BLOB_KIND"); ok {
		c.Blob.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("BLOB_S3_BUCKET"); ok {
		c.Blob.S3.Bucket = v
	}
	if v, ok := getEnvStr("BLOB_S3_REGION"); ok {
		c.Blob.S3.Region = v
	}
	if v, ok := getEnvStr("BLOB_S3_ENDPOINT"); ok {
		c.Blob.S3.Endpoint = v
	}
	if v, ok := getEnvStr("BLOB_S3_BASE_URL"); ok {
		c.Blob.S3.BaseURL = v
	}
	if v, ok := getEnvStr("BLOB_S3_ACCESS_KEY_ID"); ok {
		c.Blob.S3.AccessKeyID = v
	}
	if v, ok := getEnvStr("BLOB_S3_SECRET_ACCESS_KEY"); ok {
		c.Blob.S3.SecretAccessKey = v
	}
	if v, ok := getEnvBool("BLOB_S3_USE_PATH_STYLE"); ok {
		c.Blob.S3.UsePathStyle = v
	}
	if v, ok := getEnvStr("BLOB_FS_ROOT"); ok {
		c.Blob.FS.Root = v
	}
	if v, ok := getEnvInt("BLOB_RETRY_ATTEMPTS"); ok {
		c.Blob.Retry.Attempts = v
	}
	if v, ok := getEnvDur("BLOB_RETRY_DELAY"); ok {
		c.Blob.Retry.Delay = v
	}

	// PURGE
	if v, ok := getEnvDur("PURGE_GRACE_PERIOD"); ok {
		c.Purge.GracePeriod = v
	}
	if v, ok := getEnvInt("PURGE_GRACE_DAYS"); ok {
		c.Purge.GracePeriod = time.Duration(v) * 24 * time.Hour
	}
	if v, ok := getEnvDur("PURGE_ACCOUNT_TIMEOUT"); ok {
		c.Purge.AccountTimeout = v
	}
	if v, ok := getEnvInt("PURGE_BATCH_SIZE"); ok {
		c.Purge.BatchSize = v
	}

	// SCHEDULER / LOCK
	if v, ok := getEnvBool("SCHEDULER_ENABLED"); ok {
		c.Scheduler.Enabled = v
	}
	if v, ok := getEnvStr("SCHEDULER_DAILY_AT"); ok {
		c.Scheduler.DailyAt = v
	}
	if v, ok := getEnvStr("SCHEDULER_LOCATION"); ok {
		c.Scheduler.Location = v
	}
	if v, ok := getEnvStr("SCHEDULER_LOCK_KIND"); ok {
		c.Scheduler.LockKind = strings.ToLower(v)
	}
	if v, ok := getEnvDur("SCHEDULER_LOCK_TTL"); ok {
		c.Scheduler.LockTTL = v
	}
	if v, ok := getEnvStr("LOCK_REDIS_ADDR"); ok {
		c.Lock.Redis.Addr = v
	}
	if v, ok := getEnvInt("LOCK_REDIS_DB"); ok {
		c.Lock.Redis.DB = v
	}
	if v, ok := getEnvStr("LOCK_REDIS_PASSWORD"); ok {
		c.Lock.Redis.Password = v
	}

	// OPS
	if v, ok := getEnvStr("OPS_ADDR"); ok {
		c.Ops.Addr = v
	}
}

func envPool(prefix string, p *PoolConfig) {
	if v, ok := getEnvStr(prefix + "_DRIVER"); ok {
		p.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr(prefix + "_DSN"); ok {
		p.DSN = v
	}
	if v, ok := getEnvInt(prefix + "_MAX_OPEN_CONNS"); ok {
		p.MaxOpenConns = v
	}
	if v, ok := getEnvInt(prefix + "_MAX_IDLE_CONNS"); ok {
		p.MaxIdleConns = v
	}
	if v, ok := getEnvDur(prefix + "_CONN_MAX_LIFETIME"); ok {
		p.ConnMaxLifetime = v
	}
	if v, ok := getEnvDur(prefix + "_CONNECT_TIMEOUT"); ok {
		p.ConnectTimeout = v
	}
}

// Validate verifica valores críticos. Retorna todos los problemas juntos.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for name, p := range map[string]PoolConfig{"primary": c.Storage.Primary, "replica": c.Storage.Replica} {
		switch p.Driver {
		case "postgres", "mysql":
			if p.DSN == "" {
				add("storage.%s.dsn required for driver %q", name, p.Driver)
			}
		case "memory":
		default:
			add("storage.%s.driver %q unknown (postgres|mysql|memory)", name, p.Driver)
		}
	}

	switch c.Blob.Kind {
	case "s3":
		if c.Blob.S3.Bucket == "" {
			add("blob.s3.bucket required")
		}
	case "fs":
		if c.Blob.FS.Root == "" {
			add("blob.fs.root required")
		}
	case "memory":
	default:
		add("blob.kind %q unknown (s3|fs|memory)", c.Blob.Kind)
	}
	if c.Blob.Retry.Attempts < 1 {
		add("blob.retry.attempts must be >= 1")
	}

	if c.Purge.GracePeriod <= 0 {
		add("purge.grace_period must be > 0")
	}
	if c.Purge.AccountTimeout <= 0 {
		add("purge.account_timeout must be > 0")
	}
	if c.Purge.BatchSize <= 0 {
		add("purge.batch_size must be > 0")
	}

	if _, _, err := ParseClock(c.Scheduler.DailyAt); err != nil {
		add("scheduler.daily_at: %v", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Location); err != nil {
		add("scheduler.location: %v", err)
	}
	switch c.Scheduler.LockKind {
	case "memory":
	case "redis":
		if c.Lock.Redis.Addr == "" {
			add("lock.redis.addr required for lock_kind redis")
		}
	default:
		add("scheduler.lock_kind %q unknown (memory|redis)", c.Scheduler.LockKind)
	}
	if c.Scheduler.LockTTL <= 0 {
		add("scheduler.lock_ttl must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseClock parsea "HH:MM" (24h).
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	return t.Hour(), t.Minute(), nil
}
