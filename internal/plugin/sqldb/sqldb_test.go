package sqldb

import (
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sigmos/internal/plugin"
)

func setupProvider(t *testing.T, config Config) (*Provider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	p, err := New(config, WithDB(db))
	require.NoError(t, err)
	require.NoError(t, p.Initialize())
	t.Cleanup(func() { _ = p.Close() })
	return p, mock
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	assert.NoError(t, config.Validate())

	config.Driver = "oracle"
	err := config.Validate()
	assert.ErrorIs(t, err, plugin.ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), `unsupported driver "oracle"`)

	config = DefaultConfig()
	config.DSN = ""
	assert.ErrorIs(t, config.Validate(), plugin.ErrInvalidConfiguration)
}

func TestQuery(t *testing.T) {
	p, mock := setupProvider(t, DefaultConfig())

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, name, created_at FROM users WHERE active = ?").
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "name", "created_at"}).
			AddRow(int64(1), []byte("alice"), created).
			AddRow(int64(2), "bob", nil))

	result, err := p.Execute("query", map[string]any{
		"query":  "SELECT id, name, created_at FROM users WHERE active = ?",
		"params": []any{true},
	})
	require.NoError(t, err)

	rows := result.([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"id": 1.0, "name": "alice", "created_at": "2024-03-01T12:00:00Z"}, rows[0])
	assert.Equal(t, map[string]any{"id": 2.0, "name": "bob", "created_at": nil}, rows[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryOne(t *testing.T) {
	p, mock := setupProvider(t, DefaultConfig())

	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT name").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	result, err := p.Execute("query_one", map[string]any{"arg_0": "SELECT count(*) AS n FROM users"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 7.0}, result)

	result, err = p.Execute("query_one", map[string]any{
		"arg_0": "SELECT name FROM users WHERE name = ?",
		"arg_1": []any{"missing"},
	})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExec(t *testing.T) {
	p, mock := setupProvider(t, DefaultConfig())

	mock.ExpectExec("INSERT INTO events").
		WithArgs("deploy", `{"env":"prod"}`).
		WillReturnResult(sqlmock.NewResult(42, 1))

	result, err := p.Execute("exec", map[string]any{
		"query":  "INSERT INTO events (kind, payload) VALUES (?, ?)",
		"params": []any{"deploy", map[string]any{"env": "prod"}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rows_affected": 1.0, "last_insert_id": 42.0}, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecReadOnly(t *testing.T) {
	config := DefaultConfig()
	config.ReadOnly = true
	p, _ := setupProvider(t, config)

	_, err := p.Execute("exec", map[string]any{"query": "DELETE FROM users"})
	assert.ErrorIs(t, err, plugin.ErrExecutionFailed)
	assert.Contains(t, err.Error(), "read-only")
}

func TestPostgresArrayParams(t *testing.T) {
	config := DefaultConfig()
	config.Driver = DriverPostgres
	config.DSN = "postgres://localhost/sigmos"
	p, mock := setupProvider(t, config)

	mock.ExpectQuery("SELECT name FROM users WHERE id = ANY").
		WithArgs(arrayArg{want: "{1,2}"}).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("alice"))

	result, err := p.Execute("query", map[string]any{
		"query":  "SELECT name FROM users WHERE id = ANY($1)",
		"params": []any{[]any{1.0, 2.0}},
	})
	require.NoError(t, err)
	assert.Len(t, result, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// arrayArg matches a postgres array literal.
type arrayArg struct {
	want string
}

func (a arrayArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && s == a.want
}

func TestPostgresArrayKinds(t *testing.T) {
	p := &Provider{config: Config{Driver: DriverPostgres}}

	assert.IsType(t, pq.Array([]string{}), p.bind([]any{"a", "b"}))
	assert.IsType(t, pq.Array([]bool{}), p.bind([]any{true}))
	assert.Equal(t, `["a",1]`, p.bind([]any{"a", 1.0}))
	assert.Equal(t, "x", p.bind("x"))
}

func TestQueryError(t *testing.T) {
	p, mock := setupProvider(t, DefaultConfig())

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("no such table: widgets"))

	_, err := p.Execute("query", map[string]any{"query": "SELECT * FROM widgets"})
	assert.ErrorIs(t, err, plugin.ErrExecutionFailed)
	assert.Contains(t, err.Error(), "no such table")
}

func TestArgumentsAndMethods(t *testing.T) {
	p, _ := setupProvider(t, DefaultConfig())

	_, err := p.Execute("query", map[string]any{})
	assert.ErrorIs(t, err, plugin.ErrExecutionFailed)

	_, err = p.Execute("query", map[string]any{"query": "SELECT 1", "params": "nope"})
	assert.ErrorIs(t, err, plugin.ErrExecutionFailed)

	_, err = p.Execute("migrate", nil)
	assert.ErrorIs(t, err, plugin.ErrMethodNotFound)
}

func TestPingAndInitialization(t *testing.T) {
	p, mock := setupProvider(t, DefaultConfig())

	mock.ExpectPing()
	result, err := p.Execute("ping", nil)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	db, mock2, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock2.ExpectPing().WillReturnError(errors.New("connection refused"))

	failing, err := New(DefaultConfig(), WithDB(db))
	require.NoError(t, err)
	err = failing.Initialize()
	assert.ErrorIs(t, err, plugin.ErrInitializationFailed)
	assert.False(t, failing.Initialized())

	_, err = failing.Execute("ping", nil)
	assert.ErrorIs(t, err, plugin.ErrNotInitialized)
}
