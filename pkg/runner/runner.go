// Package runner invokes compiled action procedures over PostgreSQL
// and normalizes every outcome into the mutation result contract.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/actionc/actionc/pkg/compiler"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	// DatabaseURL wins when set; otherwise the discrete fields build
	// the connection string.
	DatabaseURL string
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	// Pool settings
	MaxConns    int32
	MinConns    int32
	MaxIdleTime time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        5432,
		Database:    "actionc",
		User:        "postgres",
		Password:    "",
		MaxConns:    10,
		MinConns:    2,
		MaxIdleTime: 5 * time.Minute,
	}
}

// ConnectionString builds the pgx connection string.
func (c Config) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		c.Host, c.Port, c.Database, c.User, c.Password,
	)
}

// Runner manages the connection pool and executes procedures.
type Runner struct {
	pool   *pgxpool.Pool
	config Config
}

// New creates a runner (does not connect yet).
func New(config Config) *Runner {
	return &Runner{config: config}
}

// Connect establishes the connection pool.
func (r *Runner) Connect(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(r.config.ConnectionString())
	if err != nil {
		return fmt.Errorf("invalid connection config: %w", err)
	}

	poolConfig.MaxConns = r.config.MaxConns
	poolConfig.MinConns = r.config.MinConns
	poolConfig.MaxConnIdleTime = r.config.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	r.pool = pool
	return nil
}

// Pool returns the underlying connection pool, nil if not connected.
func (r *Runner) Pool() *pgxpool.Pool {
	return r.pool
}

// IsConnected returns true if the pool is active.
func (r *Runner) IsConnected() bool {
	return r.pool != nil
}

// Ping verifies the connection is alive.
func (r *Runner) Ping(ctx context.Context) error {
	if !r.IsConnected() {
		return fmt.Errorf("not connected")
	}
	return r.pool.Ping(ctx)
}

// Close closes the connection pool.
func (r *Runner) Close() {
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}

// ============================================================
// INVOCATION
// ============================================================

// Invocation is one call to a compiled action procedure.
type Invocation struct {
	// Procedure is the schema-qualified function name from the
	// compiled artifact.
	Procedure string
	// SubjectID identifies the subject row; nil for actions without
	// one.
	SubjectID *uuid.UUID
	// Payload carries the free-form input; the procedure performs its
	// own typed extraction.
	Payload map[string]interface{}
	// TenantID and ActorID are the caller's identity context.
	TenantID *uuid.UUID
	ActorID  *uuid.UUID
}

var procedurePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*\.[a-z_][a-z0-9_]*$`)

// Invoke runs one action inside a single transaction. The procedure
// itself never raises across its boundary, so the decision is made on
// the returned status: success commits, error rolls back. Everything
// the driver surfaces outside that contract is normalized into an
// error-status result.
func (r *Runner) Invoke(ctx context.Context, inv Invocation) (*compiler.MutationResult, error) {
	if !r.IsConnected() {
		return nil, fmt.Errorf("not connected")
	}
	if !procedurePattern.MatchString(inv.Procedure) {
		return nil, fmt.Errorf("invalid procedure name %q", inv.Procedure)
	}

	payload := inv.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	var call string
	var args []interface{}
	if inv.SubjectID != nil {
		call = fmt.Sprintf("SELECT to_jsonb(%s($1, $2, $3, $4))", inv.Procedure)
		args = []interface{}{*inv.SubjectID, payloadJSON, inv.TenantID, inv.ActorID}
	} else {
		call = fmt.Sprintf("SELECT to_jsonb(%s($1, $2, $3))", inv.Procedure)
		args = []interface{}{payloadJSON, inv.TenantID, inv.ActorID}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	if err := tx.QueryRow(ctx, call, args...).Scan(&raw); err != nil {
		return NormalizeError(err, inv.Procedure), nil
	}

	result, err := compiler.ParseMutationResult(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed result from %s: %w", inv.Procedure, err)
	}

	if !result.IsSuccess() {
		// deliberate: the deferred rollback discards everything the
		// procedure did before it reported the error
		return result, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return NormalizeError(err, inv.Procedure), nil
	}
	return result, nil
}

// ============================================================
// INSTALL
// ============================================================

// Install applies the result-type DDL and every compiled procedure in
// one transaction: either the whole set lands or none of it does.
func (r *Runner) Install(ctx context.Context, procs []*compiler.Procedure) error {
	if !r.IsConnected() {
		return fmt.Errorf("not connected")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, compiler.ResultTypeDDL()); err != nil {
		return fmt.Errorf("failed to install result type: %w", err)
	}
	for _, proc := range procs {
		if _, err := tx.Exec(ctx, proc.SQL); err != nil {
			return fmt.Errorf("failed to install %s: %w", proc.Name, err)
		}
	}
	return tx.Commit(ctx)
}
