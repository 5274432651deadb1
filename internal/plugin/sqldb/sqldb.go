// Package sqldb provides the "sql" capability provider for querying
// relational databases from specification actions and expressions.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/plugin"
)

// DefaultName is the registry name used when none is configured.
const DefaultName = "sql"

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// Config configures the SQL provider.
type Config struct {
	Name         string        `mapstructure:"name" yaml:"name"`
	Driver       string        `mapstructure:"driver" yaml:"driver"`
	DSN          string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ReadOnly     bool          `mapstructure:"read_only" yaml:"read_only"`
}

// DefaultConfig returns an in-memory sqlite configuration.
func DefaultConfig() Config {
	return Config{
		Name:         DefaultName,
		Driver:       DriverSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 1,
		Timeout:      10 * time.Second,
	}
}

// PluginName implements plugin.Config
func (c Config) PluginName() string {
	return c.Name
}

// Validate implements plugin.Config
func (c Config) Validate() error {
	if c.Name == "" {
		return plugin.InvalidConfiguration(DefaultName, "name cannot be empty")
	}
	switch c.Driver {
	case DriverSQLite, DriverPgx, DriverPostgres:
	default:
		return plugin.InvalidConfiguration(c.Name, fmt.Sprintf("unsupported driver %q", c.Driver))
	}
	if c.DSN == "" {
		return plugin.InvalidConfiguration(c.Name, "dsn cannot be empty")
	}
	if c.Timeout <= 0 {
		return plugin.InvalidConfiguration(c.Name, "timeout must be greater than 0")
	}
	return nil
}

// Provider executes SQL statements against a database/sql pool.
type Provider struct {
	plugin.State

	config Config
	logger *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// Option configures the provider.
type Option func(*Provider)

// WithDB uses an already open pool instead of opening one from the DSN.
func WithDB(db *sql.DB) Option {
	return func(p *Provider) {
		p.db = db
	}
}

// WithLogger sets the provider logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New validates config and creates a provider.
func New(config Config, opts ...Option) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name implements plugin.Plugin
func (p *Provider) Name() string {
	return p.config.Name
}

// Metadata implements plugin.Describer
func (p *Provider) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        p.config.Name,
		Version:     "1.0.0",
		Description: "SQL database access through database/sql",
		Author:      "SIGMOS",
		Methods:     []string{"query", "query_one", "exec", "ping"},
	}
}

// Capabilities implements plugin.Describer
func (p *Provider) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{
		RequiresNetwork: p.config.Driver != DriverSQLite,
	}
}

// Initialize implements plugin.Plugin. It opens and pings the pool.
func (p *Provider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		db, err := sql.Open(p.config.Driver, p.config.DSN)
		if err != nil {
			return plugin.InitializationFailed(p.config.Name, err)
		}
		if p.config.MaxOpenConns > 0 {
			db.SetMaxOpenConns(p.config.MaxOpenConns)
		}
		p.db = db
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()
	if err := p.db.PingContext(ctx); err != nil {
		return plugin.InitializationFailed(p.config.Name, err)
	}

	p.logger.Debug("sql provider connected", zap.String("driver", p.config.Driver))
	p.MarkInitialized()
	return nil
}

// Close closes the pool.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// Execute implements plugin.Plugin
func (p *Provider) Execute(method string, args map[string]any) (any, error) {
	if err := p.CheckInitialized(p.config.Name); err != nil {
		return nil, err
	}

	p.mu.Lock()
	db := p.db
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	a := plugin.NewArgs(p.config.Name, method, args)

	switch method {
	case "ping":
		if err := db.PingContext(ctx); err != nil {
			return nil, plugin.NetworkError(p.config.Name, method, err)
		}
		return true, nil

	case "query", "query_one":
		query, params, err := p.statement(a)
		if err != nil {
			return nil, err
		}
		rows, err := p.query(ctx, db, query, params)
		if err != nil {
			return nil, plugin.ExecutionFailed(p.config.Name, method, err)
		}
		if method == "query" {
			return rows, nil
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil

	case "exec":
		if p.config.ReadOnly {
			return nil, plugin.ExecutionFailed(p.config.Name, method, fmt.Errorf("provider is read-only"))
		}
		query, params, err := p.statement(a)
		if err != nil {
			return nil, err
		}
		result, err := db.ExecContext(ctx, query, params...)
		if err != nil {
			return nil, plugin.ExecutionFailed(p.config.Name, method, err)
		}
		out := map[string]any{}
		if n, err := result.RowsAffected(); err == nil {
			out["rows_affected"] = float64(n)
		}
		if id, err := result.LastInsertId(); err == nil {
			out["last_insert_id"] = float64(id)
		}
		return out, nil
	}

	return nil, plugin.MethodNotFound(p.config.Name, method)
}

// statement reads the query and its positional parameters.
func (p *Provider) statement(a plugin.Args) (string, []any, error) {
	query, err := a.String("query", 0)
	if err != nil {
		return "", nil, err
	}
	var params []any
	if raw := a.Raw("params", 1); raw != nil {
		list, err := a.List("params", 1)
		if err != nil {
			return "", nil, err
		}
		params = make([]any, len(list))
		for i, v := range list {
			params[i] = p.bind(v)
		}
	}
	return query, params, nil
}

// bind converts a runtime value into a driver argument. Lists bind as
// postgres arrays on postgres drivers and as JSON text elsewhere.
func (p *Provider) bind(v any) any {
	switch v := v.(type) {
	case []any:
		if p.config.Driver != DriverSQLite {
			return postgresArray(v)
		}
		data, _ := json.Marshal(v)
		return string(data)
	case map[string]any:
		data, _ := json.Marshal(v)
		return string(data)
	}
	return v
}

func postgresArray(values []any) any {
	strs := make([]string, 0, len(values))
	nums := make([]float64, 0, len(values))
	bools := make([]bool, 0, len(values))
	for _, v := range values {
		switch v := v.(type) {
		case string:
			strs = append(strs, v)
		case float64:
			nums = append(nums, v)
		case bool:
			bools = append(bools, v)
		}
	}
	switch len(values) {
	case len(strs):
		return pq.Array(strs)
	case len(nums):
		return pq.Array(nums)
	case len(bools):
		return pq.Array(bools)
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func (p *Provider) query(ctx context.Context, db *sql.DB, query string, params []any) ([]any, error) {
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := make([]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[strings.ToLower(col)] = convertColumn(values[i])
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func convertColumn(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case float32:
		return float64(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	}
	return v
}
