package config

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS config_settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Settings are stored as dotted keys, e.g. "cache.addr".
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(settingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create config_settings table: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

type setting struct {
	get func(c *ConfigData) string
	set func(c *ConfigData, v string) error
}

func stringSetting(field func(c *ConfigData) *string) setting {
	return setting{
		get: func(c *ConfigData) string { return *field(c) },
		set: func(c *ConfigData, v string) error { *field(c) = v; return nil },
	}
}

func intSetting(field func(c *ConfigData) *int) setting {
	return setting{
		get: func(c *ConfigData) string { return strconv.Itoa(*field(c)) },
		set: func(c *ConfigData, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*field(c) = n
			return nil
		},
	}
}

func floatSetting(field func(c *ConfigData) *float64) setting {
	return setting{
		get: func(c *ConfigData) string { return strconv.FormatFloat(*field(c), 'g', -1, 64) },
		set: func(c *ConfigData, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*field(c) = f
			return nil
		},
	}
}

func boolSetting(field func(c *ConfigData) *bool) setting {
	return setting{
		get: func(c *ConfigData) string { return strconv.FormatBool(*field(c)) },
		set: func(c *ConfigData, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*field(c) = b
			return nil
		},
	}
}

var settings = map[string]setting{
	"database.connection_string": stringSetting(func(c *ConfigData) *string { return &c.Database.ConnectionString }),
	"database.auto_migrate":      boolSetting(func(c *ConfigData) *bool { return &c.Database.AutoMigrate }),
	"rest.cert":                  stringSetting(func(c *ConfigData) *string { return &c.REST.Cert }),
	"rest.key":                   stringSetting(func(c *ConfigData) *string { return &c.REST.Key }),
	"rest.port":                  intSetting(func(c *ConfigData) *int { return &c.REST.Port }),
	"rest.listen_addr":           stringSetting(func(c *ConfigData) *string { return &c.REST.ListenAddr }),
	"cache.enabled":              boolSetting(func(c *ConfigData) *bool { return &c.Cache.Enabled }),
	"cache.addr":                 stringSetting(func(c *ConfigData) *string { return &c.Cache.Addr }),
	"cache.password":             stringSetting(func(c *ConfigData) *string { return &c.Cache.Password }),
	"cache.db":                   intSetting(func(c *ConfigData) *int { return &c.Cache.DB }),
	"cache.ttl":                  stringSetting(func(c *ConfigData) *string { return &c.Cache.TTL }),
	"queue.enabled":              boolSetting(func(c *ConfigData) *bool { return &c.Queue.Enabled }),
	"queue.brokers": {
		get: func(c *ConfigData) string { return strings.Join(c.Queue.Brokers, ",") },
		set: func(c *ConfigData, v string) error { c.Queue.Brokers = splitList(v); return nil },
	},
	"queue.request_topic":        stringSetting(func(c *ConfigData) *string { return &c.Queue.RequestTopic }),
	"queue.result_topic":         stringSetting(func(c *ConfigData) *string { return &c.Queue.ResultTopic }),
	"queue.group_id":             stringSetting(func(c *ConfigData) *string { return &c.Queue.GroupID }),
	"queue.workers":              intSetting(func(c *ConfigData) *int { return &c.Queue.Workers }),
	"analysis.default_channel":   stringSetting(func(c *ConfigData) *string { return &c.Analysis.DefaultChannel }),
	"analysis.e1_percent":        floatSetting(func(c *ConfigData) *float64 { return &c.Analysis.E1Percent }),
	"analysis.path_length":       floatSetting(func(c *ConfigData) *float64 { return &c.Analysis.PathLength }),
	"analysis.smoothing_seconds": intSetting(func(c *ConfigData) *int { return &c.Analysis.SmoothingSeconds }),
	"analysis.reference_phase":   stringSetting(func(c *ConfigData) *string { return &c.Analysis.ReferencePhase }),
	"analysis.default_titer":     floatSetting(func(c *ConfigData) *float64 { return &c.Analysis.DefaultTiter }),
	"analysis.max_parallel_runs": intSetting(func(c *ConfigData) *int { return &c.Analysis.MaxParallelRuns }),
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	rows, err := s.db.Query(`SELECT key, value FROM config_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query config settings: %w", err)
	}
	defer rows.Close()

	config := &ConfigData{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan config setting: %w", err)
		}
		st, ok := settings[key]
		if !ok {
			return nil, fmt.Errorf("unknown config setting %q", key)
		}
		if err := st.set(config, value); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	return config, rows.Err()
}

// SetSetting stores a single dotted-key setting after checking that it parses.
func (s *SQLiteProvider) SetSetting(key, value string) error {
	st, ok := settings[key]
	if !ok {
		return fmt.Errorf("unknown config setting %q", key)
	}
	if err := st.set(&ConfigData{}, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	_, err := s.db.Exec(`
		INSERT INTO config_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting so that its default applies again.
func (s *SQLiteProvider) DeleteSetting(key string) error {
	if _, err := s.db.Exec(`DELETE FROM config_settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// SaveConfig replaces every stored setting with the values in configData.
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM config_settings`); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	for key, st := range settings {
		if _, err := tx.Exec(`INSERT INTO config_settings (key, value) VALUES (?, ?)`, key, st.get(configData)); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// IsReadOnly returns false as SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
