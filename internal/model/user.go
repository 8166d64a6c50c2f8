// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Identity in this app is the email address — users prove ownership of it
// with a one-time passcode, so there is no password field. The email column
// carries a UNIQUE constraint in the DB; the internal ID is an xid string,
// consistent with Note.
//
// WHY DOB string (not time.Time)?
// The date of birth arrives from the signup form as a plain date string and
// is only ever stored and displayed, never computed with. Keeping it a
// string avoids timezone ambiguity on a value that has no time component.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DOB       string    `json:"dob"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicUser is the subset of User returned by auth endpoints.
// DOB and timestamps stay server-side.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public returns the client-facing view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
}
