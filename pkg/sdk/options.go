package indexstager

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

const (
	driverRedis  = "redis"
	driverMemory = "memory"
)

type clientConfig struct {
	driver   string
	addrs    []string
	username string
	password string
	db       int

	pollAttempts int
	pollInterval time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis connects to a Redis 8+ instance (or Redis Stack) with the search module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedisCluster connects to several seed addresses with ACL credentials.
func WithRedisCluster(addrs []string, username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = addrs
		c.username = username
		c.password = password
	})
}

// WithDB selects the logical Redis database.
func WithDB(db int) Option {
	return optionFunc(func(c *clientConfig) {
		c.db = db
	})
}

// WithMemory uses a process-local index service. State is lost on Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverMemory
		c.addrs = nil
	})
}

// WithCopyPoll bounds the wait for the copy of a concrete live index
// during a first-time migration. Defaults: 10 attempts, 1s apart.
func WithCopyPoll(attempts int, interval time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.pollAttempts = attempts
		c.pollInterval = interval
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
