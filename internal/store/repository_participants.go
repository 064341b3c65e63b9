package store

import "context"

const participantColumns = `room_id, user_id, role, joined_at`

func scanParticipant(row rowScanner) (*Participant, error) {
	var p Participant
	if err := row.Scan(&p.RoomID, &p.UserID, &p.Role, &p.JoinedAt); err != nil {
		return nil, mapNotFound(err)
	}
	return &p, nil
}

// AddParticipant inserts a membership row. created is false when the user was
// already a member of the room.
func (s *Store) AddParticipant(ctx context.Context, roomID, userID, role string) (bool, error) {
	tag, err := s.Pool.Exec(ctx,
		`INSERT INTO room_participants (room_id, user_id, role) VALUES ($1,$2,$3)
		 ON CONFLICT (room_id, user_id) DO NOTHING`,
		roomID, userID, role)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RemoveParticipant reports whether a row was actually deleted.
func (s *Store) RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM room_participants WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetParticipantByUser(ctx context.Context, userID string) (*Participant, error) {
	return scanParticipant(s.Pool.QueryRow(ctx,
		`SELECT p.room_id, p.user_id, p.role, p.joined_at
		   FROM room_participants p JOIN rooms r ON r.id = p.room_id
		  WHERE p.user_id = $1 AND r.status <> 'closed'
		  ORDER BY p.joined_at DESC LIMIT 1`, userID))
}

func (s *Store) ListParticipants(ctx context.Context, roomID string) ([]Participant, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+participantColumns+` FROM room_participants WHERE room_id = $1 ORDER BY joined_at`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
