package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"cygnus-loan-engine/internal/domain/loan"
	"cygnus-loan-engine/pkg/logger"
)

const (
	DriverMySQL   = "mysql"
	DriverSQLite  = "sqlite"
	DriverLevelDB = "leveldb"
)

type Config struct {
	AppPort string `toml:"app_port"`

	// mysql | sqlite | leveldb
	StoreDriver string `toml:"store_driver"`

	MySQLHost string `toml:"mysql_host"`
	MySQLPort string `toml:"mysql_port"`
	MySQLDB   string `toml:"mysql_db"`
	MySQLUser string `toml:"mysql_user"`
	MySQLPass string `toml:"mysql_pass"`

	SQLitePath  string `toml:"sqlite_path"`
	LevelDBPath string `toml:"leveldb_path"`

	// empty disables the idempotency middleware
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	IdempTTLSecs int `toml:"idempotency_ttl_seconds"`

	CustodyAccount  string `toml:"custody_account"`
	OperatorAccount string `toml:"operator_account"`
	ResidualPolicy  string `toml:"residual_policy"`

	JWTSecret string `toml:"jwt_secret"`
	JWTIssuer string `toml:"jwt_issuer"`

	// empty disables event publishing
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`

	// requests per second per client IP; 0 disables
	RateLimitRPS float64 `toml:"rate_limit_rps"`

	Log logger.Config `toml:"log"`
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func defaults() *Config {
	return &Config{
		AppPort:     "8080",
		StoreDriver: DriverMySQL,
		MySQLHost:   "mysql",
		MySQLPort:   "3306",
		MySQLDB:     "loans",
		MySQLUser:   "loans",
		MySQLPass:   "loans",
		SQLitePath:  "data/loans.db",
		LevelDBPath: "data/loans.ldb",

		RedisAddr:    "redis:6379",
		IdempTTLSecs: 300,

		CustodyAccount:  "loan-engine-custody",
		OperatorAccount: "operator",
		ResidualPolicy:  string(loan.ResidualWaive),

		JWTIssuer:  "cygnus",
		KafkaTopic: "loan-events",

		Log: logger.Config{Level: "info"},
	}
}

// Load applies defaults, then the TOML file named by CONFIG_FILE (if any),
// then environment variables.
func Load() (*Config, error) {
	c := defaults()
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		if _, err := toml.DecodeFile(p, c); err != nil {
			return nil, fmt.Errorf("config file %s: %w", p, err)
		}
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	c.AppPort = getenv("APP_PORT", c.AppPort)
	c.StoreDriver = strings.ToLower(getenv("STORE_DRIVER", c.StoreDriver))
	c.MySQLHost = getenv("MYSQL_HOST", c.MySQLHost)
	c.MySQLPort = getenv("MYSQL_PORT", c.MySQLPort)
	c.MySQLDB = getenv("MYSQL_DB", c.MySQLDB)
	c.MySQLUser = getenv("MYSQL_USER", c.MySQLUser)
	c.MySQLPass = getenv("MYSQL_PASS", c.MySQLPass)
	c.SQLitePath = getenv("SQLITE_PATH", c.SQLitePath)
	c.LevelDBPath = getenv("LEVELDB_PATH", c.LevelDBPath)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)
	c.CustodyAccount = getenv("CUSTODY_ACCOUNT", c.CustodyAccount)
	c.OperatorAccount = getenv("OPERATOR_ACCOUNT", c.OperatorAccount)
	c.ResidualPolicy = getenv("RESIDUAL_POLICY", c.ResidualPolicy)
	c.JWTSecret = getenv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getenv("JWT_ISSUER", c.JWTIssuer)
	c.KafkaTopic = getenv("KAFKA_TOPIC", c.KafkaTopic)
	c.Log.Level = getenv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getenv("LOG_FILE", c.Log.File)

	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := os.Getenv("IDEMPOTENCY_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.IdempTTLSecs = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateLimitRPS = f
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMySQL:
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	case DriverLevelDB:
		if c.LevelDBPath == "" {
			return errors.New("missing LEVELDB_PATH")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.CustodyAccount == "" {
		return errors.New("missing CUSTODY_ACCOUNT")
	}
	if !loan.ResidualPolicy(c.ResidualPolicy).Valid() {
		return fmt.Errorf("invalid RESIDUAL_POLICY %q", c.ResidualPolicy)
	}
	if c.RateLimitRPS < 0 {
		return errors.New("RATE_LIMIT_RPS must not be negative")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
