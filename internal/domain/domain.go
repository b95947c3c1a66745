package domain

import "time"

type Activity struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Date         time.Time `json:"date" format:"date-time"`
	Category     string    `json:"category"`
	Description  string    `json:"description,omitempty"`
	City         string    `json:"city"`
	Venue        string    `json:"venue"`
	HostUsername string    `json:"host_username"`
	IsCancelled  bool      `json:"is_cancelled"`
	Attendees    []Profile `json:"attendees"`
}

// IsAttendedBy reports whether username is in the attendee set.
func (a Activity) IsAttendedBy(username string) bool {
	for _, p := range a.Attendees {
		if p.Username == username {
			return true
		}
	}
	return false
}

type Profile struct {
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Image       *string `json:"image,omitempty"`
}

type User struct {
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Image        *string `json:"image,omitempty"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// Profile returns the attendee-facing view of a user.
func (u User) Profile() Profile {
	return Profile{Username: u.Username, DisplayName: u.DisplayName, Image: u.Image}
}
