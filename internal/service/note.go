// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Handlers only know about HTTP; services only know about business rules;
// neither knows any SQL. NoteService takes repository.NoteRepository (an
// interface), not *sqlite.DB, so tests can pass an in-memory fake and the
// backing store can change without touching this file.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/hd-notes/internal/apperror"
	"github.com/sakif/hd-notes/internal/model"
	"github.com/sakif/hd-notes/internal/repository"
)

// Validation constants.
const (
	MaxNoteTitleLength   = 200
	MaxNoteContentLength = 100000 // ~100KB
	MaxTagLength         = 50
	MaxTagsPerNote       = 20
)

// NoteService handles business logic for notes.
type NoteService struct {
	notes  repository.NoteRepository
	logger *slog.Logger
}

// NewNoteService creates a new NoteService.
func NewNoteService(notes repository.NoteRepository, logger *slog.Logger) *NoteService {
	return &NoteService{
		notes:  notes,
		logger: logger,
	}
}

// normalizeTags trims tags and drops empties. Order is irrelevant to the
// data model, so we keep whatever order the client sent.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len(tag) > MaxTagLength {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("tags must be %d characters or less", MaxTagLength))
		}
		out = append(out, tag)
	}
	if len(out) > MaxTagsPerNote {
		return nil, apperror.ValidationFailed("tags",
			fmt.Sprintf("a note can have at most %d tags", MaxTagsPerNote))
	}
	return out, nil
}

// Create validates and saves a new note owned by userID.
func (s *NoteService) Create(ctx context.Context, userID, title, content string, tags []string) (*model.Note, error) {
	title = strings.TrimSpace(title)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "Title is required")
	}
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "User ID is required")
	}
	if len(title) > MaxNoteTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxNoteTitleLength))
	}
	if len(content) > MaxNoteContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxNoteContentLength))
	}

	normalized, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}

	note := &model.Note{
		Title:   title,
		Content: content,
		Tags:    normalized,
		UserID:  userID,
	}

	if err := s.notes.Create(ctx, note); err != nil {
		s.logger.Error("failed to create note",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating note: %w", err)
	}

	s.logger.Info("note created",
		slog.String("id", note.ID),
		slog.String("userID", note.UserID),
	)

	return note, nil
}

// ListByUser retrieves all of a user's notes, newest first.
func (s *NoteService) ListByUser(ctx context.Context, userID string) ([]model.Note, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "User ID is required")
	}

	notes, err := s.notes.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list notes",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing notes: %w", err)
	}

	return notes, nil
}

// Update replaces the mutable fields of a note.
//
// STRATEGY: "Fetch then update"
//  1. Fetch the existing note (confirms it exists, gives us the owner)
//  2. Check the caller actually owns it
//  3. Apply the replacement fields and save
//
// The update is replace-style: title, content, and tags are all
// overwritten with what the caller sent, matching the original API's
// full-document update.
func (s *NoteService) Update(ctx context.Context, actorID, noteID, title, content string, tags []string) (*model.Note, error) {
	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return nil, apperror.ValidationFailed("noteId", "Note ID is required")
	}

	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}

	if note.UserID != actorID {
		return nil, apperror.Forbidden("You do not have access to this note")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "Title is required")
	}
	if len(title) > MaxNoteTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxNoteTitleLength))
	}
	if len(content) > MaxNoteContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxNoteContentLength))
	}

	normalized, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}

	note.Title = title
	note.Content = content
	note.Tags = normalized

	if err := s.notes.Update(ctx, note); err != nil {
		s.logger.Error("failed to update note",
			slog.String("id", noteID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating note: %w", err)
	}

	s.logger.Info("note updated", slog.String("id", note.ID))

	return note, nil
}

// Delete removes a note after checking the caller owns it.
func (s *NoteService) Delete(ctx context.Context, actorID, noteID string) error {
	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return apperror.ValidationFailed("noteId", "Note ID is required")
	}

	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return err
	}

	if note.UserID != actorID {
		return apperror.Forbidden("You do not have access to this note")
	}

	if err := s.notes.Delete(ctx, noteID); err != nil {
		return err
	}

	s.logger.Info("note deleted", slog.String("id", noteID))
	return nil
}
