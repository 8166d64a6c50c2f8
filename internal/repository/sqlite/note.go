package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/hd-notes/internal/apperror"
	"github.com/sakif/hd-notes/internal/model"
	"github.com/sakif/hd-notes/internal/repository"
)

// compile-time check that *NoteStore implements repository.NoteRepository
var _ repository.NoteRepository = (*NoteStore)(nil)

// encodeTags marshals the tag set into the JSON TEXT column.
// nil and empty both encode as "[]" so the column is never NULL.
func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encoding tags: %w", err)
	}
	return string(b), nil
}

// decodeTags unmarshals the tags column back into a slice.
func decodeTags(raw string, into *[]string) error {
	if raw == "" {
		*into = []string{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return fmt.Errorf("decoding tags: %w", err)
	}
	if *into == nil {
		*into = []string{}
	}
	return nil
}

// Create inserts a new note. ID and timestamps are generated here and
// written back through the pointer.
func (s *NoteStore) Create(ctx context.Context, note *model.Note) error {
	note.ID = xid.New().String()

	now := time.Now()
	note.CreatedAt = now
	note.UpdatedAt = now

	tags, err := encodeTags(note.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: creating note: %w", err)
	}

	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO notes (id, title, content, tags, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		note.ID,
		note.Title,
		note.Content,
		tags,
		note.UserID,
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating note: %w", err)
	}

	return nil
}

// GetByID retrieves a single note by its ID.
// Returns apperror.ErrNotFound if the note doesn't exist.
func (s *NoteStore) GetByID(ctx context.Context, id string) (*model.Note, error) {
	var (
		n       model.Note
		rawTags string
	)

	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, title, content, tags, user_id, created_at, updated_at
		 FROM notes
		 WHERE id = ?`,
		id,
	).Scan(
		&n.ID,
		&n.Title,
		&n.Content,
		&rawTags,
		&n.UserID,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("note", id)
		}
		return nil, fmt.Errorf("sqlite: getting note %s: %w", id, err)
	}

	if err := decodeTags(rawTags, &n.Tags); err != nil {
		return nil, fmt.Errorf("sqlite: note %s: %w", id, err)
	}

	return &n, nil
}

// ListByUser retrieves all notes owned by the given user, newest first.
//
// No pagination: per-user note counts stay small in this app and the
// frontend renders the whole grid at once.
func (s *NoteStore) ListByUser(ctx context.Context, userID string) ([]model.Note, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, title, content, tags, user_id, created_at, updated_at
		 FROM notes
		 WHERE user_id = ?
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notes for user %s: %w", userID, err)
	}
	defer rows.Close()

	notes := []model.Note{}
	for rows.Next() {
		var (
			n       model.Note
			rawTags string
		)
		if err := rows.Scan(
			&n.ID, &n.Title, &n.Content, &rawTags,
			&n.UserID, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning note row: %w", err)
		}
		if err := decodeTags(rawTags, &n.Tags); err != nil {
			return nil, fmt.Errorf("sqlite: note %s: %w", n.ID, err)
		}
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating notes: %w", err)
	}

	return notes, nil
}

// Update replaces the mutable fields of an existing note.
// id, user_id, and created_at are immutable; updated_at is bumped here.
// RowsAffected == 0 means the WHERE clause matched nothing → not found.
func (s *NoteStore) Update(ctx context.Context, note *model.Note) error {
	note.UpdatedAt = time.Now()

	tags, err := encodeTags(note.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: updating note %s: %w", note.ID, err)
	}

	result, err := s.db.conn.ExecContext(ctx,
		`UPDATE notes
		 SET title = ?, content = ?, tags = ?, updated_at = ?
		 WHERE id = ?`,
		note.Title,
		note.Content,
		tags,
		note.UpdatedAt,
		note.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating note %s: %w", note.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("note", note.ID)
	}

	return nil
}

// Delete removes a note by its ID.
// Same RowsAffected pattern as Update to detect "not found".
func (s *NoteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM notes WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting note %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("note", id)
	}

	return nil
}
