package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment overrides applied on top of a loaded configuration.
const (
	EnvDatabaseDSN   = "CHROMATRACE_DATABASE_DSN"
	EnvListenAddr    = "CHROMATRACE_LISTEN_ADDR"
	EnvPort          = "CHROMATRACE_PORT"
	EnvRedisAddr     = "CHROMATRACE_REDIS_ADDR"
	EnvRedisPassword = "CHROMATRACE_REDIS_PASSWORD"
	EnvKafkaBrokers  = "CHROMATRACE_KAFKA_BROKERS"
	EnvQueueWorkers  = "CHROMATRACE_QUEUE_WORKERS"
)

// ApplyEnv loads the given .env files (".env" when none are given) and then
// overrides config fields from the process environment. Variables already set
// in the environment win over .env values. A missing .env file is ignored.
// Setting a Redis address or Kafka brokers enables the matching component.
func ApplyEnv(c *ConfigData, files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	c.Database.ConnectionString = getEnv(EnvDatabaseDSN, c.Database.ConnectionString)
	c.REST.ListenAddr = getEnv(EnvListenAddr, c.REST.ListenAddr)
	c.Cache.Password = getEnv(EnvRedisPassword, c.Cache.Password)

	var err error
	if c.REST.Port, err = getEnvAsInt(EnvPort, c.REST.Port); err != nil {
		return err
	}
	if c.Queue.Workers, err = getEnvAsInt(EnvQueueWorkers, c.Queue.Workers); err != nil {
		return err
	}

	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		c.Cache.Addr = addr
		c.Cache.Enabled = true
	}
	if brokers := splitList(os.Getenv(EnvKafkaBrokers)); len(brokers) > 0 {
		c.Queue.Brokers = brokers
		c.Queue.Enabled = true
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}
