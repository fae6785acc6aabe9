package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	LogLevel   string
	ListenAddr string
	Storage    string // memory or postgres

	PostgresAddr     string // Postgres address in host[:port] format
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string

	RedisAddr     string // Redis address in host[:port] format
	RedisUser     string // Redis user
	RedisPassword string // Redis password

	ContractAddr string // identity of the sale instance, holds inventory and proceeds
	OwnerAddr    string

	LimiterFailOpen   bool
	CacheRoyalties    bool // whether to cache royalty lists in redis
	RoyaltiesCacheTTL time.Duration
	PurchasesLimit    int // 0 disables the limiter
	PurchasesWindow   time.Duration

	AttemptsBatchSize     int
	AttemptsFlushInterval time.Duration

	// Seeder params
	SeedTokenAddr string
	SeedTokenID   uint64
	SeedAmount    uint64
	SeedFund      string // comma separated address=wei pairs
}

// New parses the command line of the process. It exits on invalid flags.
func New() *Config {
	c, err := Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return c
}

func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	c := &Config{}

	fs.StringVar(&c.LogLevel, "logLevel", LookupEnvString("LOG_LEVEL", "DEBUG"), "Set log level: DEBUG, INFO, WARNING, ERROR.")
	fs.StringVar(&c.ListenAddr, "listenAddr", LookupEnvString("LISTEN_ADDR", ":8000"), `Address in form of "[host]:port" that HTTP server should be listening on.`)
	fs.StringVar(&c.Storage, "storage", LookupEnvString("STORAGE", StorageMemory), "Storage backend: memory or postgres.")

	fs.StringVar(&c.PostgresAddr, "postgresAddr", LookupEnvString("POSTGRES_ADDR", "127.0.0.1:5432"), "Set PostgreSQL address as host:port, where port is optional (without TLS).")
	fs.StringVar(&c.PostgresDB, "postgresDB", LookupEnvString("POSTGRES_DB", "tokensale"), "Set PostgreSQL DB.")
	fs.StringVar(&c.PostgresUser, "postgresUser", LookupEnvString("POSTGRES_USER", "develop"), "Set PostgreSQL user.")
	fs.StringVar(&c.PostgresPassword, "postgresPassword", LookupEnvString("POSTGRES_PASSWORD", "develop"), "Set PostgreSQL password.")

	fs.StringVar(&c.RedisAddr, "redisAddr", LookupEnvString("REDIS_ADDR", "127.0.0.1:6379"), "Redis address in host[:port] format.")
	fs.StringVar(&c.RedisUser, "redisUser", LookupEnvString("REDIS_USER", ""), "Redis user.")
	fs.StringVar(&c.RedisPassword, "redisPassword", LookupEnvString("REDIS_PASSWORD", ""), "Redis password.")

	fs.StringVar(&c.ContractAddr, "contractAddr", LookupEnvString("CONTRACT_ADDR", ""), "Address of the sale instance.")
	fs.StringVar(&c.OwnerAddr, "ownerAddr", LookupEnvString("OWNER_ADDR", ""), "Address of the sale owner.")

	fs.BoolVar(&c.LimiterFailOpen, "limiterFailOpen", LookupEnvBool("LIMITER_FAIL_OPEN", false), "Set to make limiter allow request if failed to check limits.")
	fs.BoolVar(&c.CacheRoyalties, "cacheRoyalties", LookupEnvBool("CACHE_ROYALTIES", false), "Set to cache royalty lists in redis.")
	fs.DurationVar(&c.RoyaltiesCacheTTL, "royaltiesCacheTTL", LookupEnvDuration("ROYALTIES_CACHE_TTL", time.Hour), "How long royalty lists are kept in redis.")
	fs.IntVar(&c.PurchasesLimit, "purchasesLimit", LookupEnvInt("PURCHASES_LIMIT", 0), "Number of purchases that single caller can make within one window, 0 means unlimited.")
	fs.DurationVar(&c.PurchasesWindow, "purchasesWindow", LookupEnvDuration("PURCHASES_WINDOW", time.Hour), "Window of the purchases limit in format that can be parsed by go's time.ParseDuration.")

	fs.IntVar(&c.AttemptsBatchSize, "attemptsBatchSize", LookupEnvInt("ATTEMPTS_BATCH_SIZE", 500), "Number of purchase attempts to be stored in buffer before being flushed.")
	fs.DurationVar(&c.AttemptsFlushInterval, "attemptsFlushInterval", LookupEnvDuration("ATTEMPTS_FLUSH_INTERVAL", 10*time.Second), "How often attempts buffer should be flushed.")

	fs.StringVar(&c.SeedTokenAddr, "seedTokenAddr", LookupEnvString("SEED_TOKEN_ADDR", ""), "Token contract to mint inventory on (only for seeder and memory storage).")
	fs.Uint64Var(&c.SeedTokenID, "seedTokenID", LookupEnvUint64("SEED_TOKEN_ID", 1), "Token id to mint.")
	fs.Uint64Var(&c.SeedAmount, "seedAmount", LookupEnvUint64("SEED_AMOUNT", 0), "Units to mint to the sale instance.")
	fs.StringVar(&c.SeedFund, "seedFund", LookupEnvString("SEED_FUND", ""), "Comma separated address=wei pairs to fund.")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) validate() error {
	if c.Storage != StorageMemory && c.Storage != StoragePostgres {
		return fmt.Errorf("unknown storage %q", c.Storage)
	}

	for name, addr := range map[string]string{"contractAddr": c.ContractAddr, "ownerAddr": c.OwnerAddr} {
		if addr == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	for name, addr := range map[string]string{"contractAddr": c.ContractAddr, "ownerAddr": c.OwnerAddr, "seedTokenAddr": c.SeedTokenAddr} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a hex address: %q", name, addr)
		}
	}

	if c.Contract() == (common.Address{}) || c.Owner() == (common.Address{}) {
		return fmt.Errorf("contractAddr and ownerAddr must not be the zero address")
	}

	if c.PurchasesLimit > 0 && c.PurchasesWindow <= 0 {
		return fmt.Errorf("purchasesWindow must be positive, got %s", c.PurchasesWindow)
	}

	if c.Storage == StoragePostgres {
		if c.AttemptsBatchSize <= 0 {
			return fmt.Errorf("attemptsBatchSize must be positive, got %d", c.AttemptsBatchSize)
		}

		if c.AttemptsFlushInterval <= 0 {
			return fmt.Errorf("attemptsFlushInterval must be positive, got %s", c.AttemptsFlushInterval)
		}
	}

	return nil
}

func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddr)
}

func (c *Config) Owner() common.Address {
	return common.HexToAddress(c.OwnerAddr)
}
