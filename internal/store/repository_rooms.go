package store

import (
	"context"
	"fmt"
	"strings"
)

const roomColumns = `id, name, host_id, bet_cc, status, kind, difficulty, created_at`

func scanRoom(row rowScanner) (*Room, error) {
	var r Room
	if err := row.Scan(&r.ID, &r.Name, &r.HostID, &r.BetCC, &r.Status, &r.Kind, &r.Difficulty, &r.CreatedAt); err != nil {
		return nil, mapNotFound(err)
	}
	return &r, nil
}

func (s *Store) CreateRoom(ctx context.Context, r Room) (*Room, error) {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.Status == "" {
		r.Status = RoomWaiting
	}
	if r.Kind == "" {
		r.Kind = RoomKindPrivate
	}
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO rooms (id, name, host_id, bet_cc, status, kind, difficulty)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+roomColumns,
		r.ID, strings.TrimSpace(r.Name), r.HostID, r.BetCC, r.Status, r.Kind, r.Difficulty)
	out, err := scanRoom(row)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return out, nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (*Room, error) {
	return scanRoom(s.Pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

func (s *Store) ListOpenRooms(ctx context.Context, limit int) ([]Room, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE status <> 'closed' ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateRoomStatus(ctx context.Context, id, status string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE rooms SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
