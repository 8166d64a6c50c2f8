package repository

import (
	"context"

	"github.com/sakif/hd-notes/internal/model"
)

// UserRepository is the persistence boundary for user records.
// Users are created exactly once (on first successful signup verification)
// and never updated or deleted by this system.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// NoteRepository is the persistence boundary for note records.
// ListByUser returns the user's notes newest-first.
type NoteRepository interface {
	Create(ctx context.Context, note *model.Note) error
	GetByID(ctx context.Context, id string) (*model.Note, error)
	ListByUser(ctx context.Context, userID string) ([]model.Note, error)
	Update(ctx context.Context, note *model.Note) error
	Delete(ctx context.Context, id string) error
}
