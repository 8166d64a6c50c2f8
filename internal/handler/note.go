package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/hd-notes/internal/auth"
	"github.com/sakif/hd-notes/internal/service"
)

// NoteHandler manages CRUD operations for notes.
//
// All note routes sit behind the RequireAuth middleware, so every request
// carries a validated userID in its context. The routes keep the original
// API's shape (userId in the list path, noteId in update/delete) but the
// handler checks the path/body identity against the token: you can only
// touch your own notes.
type NoteHandler struct {
	noteService *service.NoteService
	logger      *slog.Logger
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(noteService *service.NoteService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{
		noteService: noteService,
		logger:      logger,
	}
}

// noteRequest is the body of create and update requests.
// UserID is only meaningful on create, where it must match the token.
type noteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	UserID  string   `json:"userId"`
}

// HandleCreate saves a new note.
//
// HTTP: POST /api/notes/create
// REQUEST BODY: {"title", "content", "tags", "userId"}
// RESPONSES: 201 note | 400 missing title/userId | 403 userId ≠ token | 500
func (h *NoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, _ := auth.UserIDFromContext(r.Context())

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid note JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return
	}

	// The body still carries userId (the original API's contract), but the
	// token decides who you are.
	if req.UserID != "" && req.UserID != actorID {
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Cannot create notes for another user",
		})
		return
	}

	note, err := h.noteService.Create(r.Context(), actorID, req.Title, req.Content, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

// HandleList returns all notes owned by the user in the path, newest first.
//
// HTTP: GET /api/notes/{userId}
// RESPONSES: 200 [note...] | 403 userId ≠ token | 500
func (h *NoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actorID, _ := auth.UserIDFromContext(r.Context())

	userID := r.PathValue("userId")
	if userID != actorID {
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Cannot list another user's notes",
		})
		return
	}

	notes, err := h.noteService.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, notes)
}

// HandleUpdate replaces a note's fields.
//
// HTTP: PUT /api/notes/{noteId}
// REQUEST BODY: {"title", "content", "tags"}
// RESPONSES: 200 updated note | 400 | 403 not the owner | 404 | 500
func (h *NoteHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actorID, _ := auth.UserIDFromContext(r.Context())
	noteID := r.PathValue("noteId")

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid note JSON", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON body",
		})
		return
	}

	note, err := h.noteService.Update(r.Context(), actorID, noteID, req.Title, req.Content, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// HandleDelete removes a note.
//
// HTTP: DELETE /api/notes/{noteId}
// RESPONSES: 200 {message} | 403 not the owner | 404 | 500
func (h *NoteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actorID, _ := auth.UserIDFromContext(r.Context())
	noteID := r.PathValue("noteId")

	if err := h.noteService.Delete(r.Context(), actorID, noteID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted"})
}
