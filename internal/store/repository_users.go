package store

import (
	"context"
	"fmt"
)

const userColumns = `id, name, token_hash, is_bot, balance_cc, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.TokenHash, &u.IsBot, &u.BalanceCC, &u.CreatedAt); err != nil {
		return nil, mapNotFound(err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, name, token string, isBot bool, balance int64) (string, error) {
	id := NewID()
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO users (id, name, token_hash, is_bot, balance_cc) VALUES ($1,$2,$3,$4,$5)`,
		id, name, HashToken(token), isBot, balance)
	if err != nil {
		return "", fmt.Errorf("create user: %w", mapUnique(err))
	}
	return id, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	return scanUser(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByToken(ctx context.Context, token string) (*User, error) {
	return scanUser(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE token_hash = $1`, HashToken(token)))
}

func (s *Store) GetBalance(ctx context.Context, userID string) (int64, error) {
	var bal int64
	if err := s.Pool.QueryRow(ctx, `SELECT balance_cc FROM users WHERE id = $1`, userID).Scan(&bal); err != nil {
		return 0, mapNotFound(err)
	}
	return bal, nil
}

func (s *Store) ListBots(ctx context.Context) ([]User, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE is_bot ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// EnsureBotUsers creates a synthetic-opponent user per name unless one exists.
// Bots have no usable token.
func (s *Store) EnsureBotUsers(ctx context.Context, names []string, balance int64) error {
	for _, name := range names {
		_, err := s.Pool.Exec(ctx,
			`INSERT INTO users (id, name, token_hash, is_bot, balance_cc)
			 SELECT $1, $2, $3, true, $4
			 WHERE NOT EXISTS (SELECT 1 FROM users WHERE is_bot AND name = $2)`,
			NewID(), name, HashToken("bot:"+NewID()), balance)
		if err != nil {
			return fmt.Errorf("ensure bot %s: %w", name, err)
		}
	}
	return nil
}
