// Package postgres reads user credentials from the account database shared with
// the profile service. It never writes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/users"
	"github.com/lib/pq"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Provider implements users.Provider on top of the users, subscriptions and
// user_subscriptions tables.
type Provider struct {
	db    Querier
	query string
}

// New returns a Provider reading tables from schema. An empty schema uses the
// connection's search_path.
func New(db Querier, schema string) *Provider {
	return &Provider{db: db, query: buildQuery(schema)}
}

// Open connects with lib/pq and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func buildQuery(schema string) string {
	table := func(name string) string {
		if schema == "" {
			return pq.QuoteIdentifier(name)
		}
		return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(name)
	}

	return `SELECT u.id, u.login, u.password, u.role, u.is_active,
		COALESCE(array_agg(s.name) FILTER (WHERE s.name IS NOT NULL), '{}')
		FROM ` + table("users") + ` u
		LEFT JOIN ` + table("user_subscriptions") + ` us ON us.user_id = u.id
		LEFT JOIN ` + table("subscriptions") + ` s ON s.id = us.subscription_id
		WHERE u.login = $1
		GROUP BY u.id`
}

// GetUserByLogin implements users.Provider.
func (p *Provider) GetUserByLogin(ctx context.Context, login string) (users.Record, error) {
	var (
		rec  users.Record
		role string
		subs []string
	)
	err := p.db.QueryRowContext(ctx, p.query, login).
		Scan(&rec.UserID, &rec.Login, &rec.PasswordHash, &role, &rec.Active, pq.Array(&subs))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return users.Record{}, users.ErrNotFound
		}
		return users.Record{}, fmt.Errorf("db error: %w", err)
	}

	parsed, ok := jwt.ParseRole(role)
	if !ok {
		return users.Record{}, fmt.Errorf("user %q has unknown role %q", login, role)
	}
	rec.Role = parsed
	rec.Subscriptions = subs
	return rec, nil
}
