package server

import (
	"time"

	"gatherly/internal/domain"
)

// Request payloads

type ActivityRequest struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title,omitempty"`
	Date        *time.Time `json:"date,omitempty" format:"date-time"`
	Category    string     `json:"category,omitempty"`
	Description string     `json:"description,omitempty"`
	City        string     `json:"city,omitempty"`
	Venue       string     `json:"venue,omitempty"`
}

// Activity converts the wire payload into the domain record. Field-level
// validation happens in the command validators, not here, so a partial
// payload still reaches the mediator and gets aggregated violations back.
func (r ActivityRequest) Activity() domain.Activity {
	a := domain.Activity{
		ID:          r.ID,
		Title:       r.Title,
		Category:    r.Category,
		Description: r.Description,
		City:        r.City,
		Venue:       r.Venue,
	}
	if r.Date != nil {
		a.Date = *r.Date
	}
	return a
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Response payloads

type ProfileResponse struct {
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Image       *string `json:"image,omitempty"`
}

type ActivityResponse struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Date         time.Time         `json:"date" format:"date-time"`
	Category     string            `json:"category"`
	Description  string            `json:"description,omitempty"`
	City         string            `json:"city"`
	Venue        string            `json:"venue"`
	HostUsername string            `json:"host_username"`
	IsCancelled  bool              `json:"is_cancelled"`
	Attendees    []ProfileResponse `json:"attendees"`
}

type UserResponse struct {
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Token       string  `json:"token,omitempty"`
	Image       *string `json:"image,omitempty"`
}

func activityResponse(a domain.Activity) ActivityResponse {
	attendees := make([]ProfileResponse, 0, len(a.Attendees))
	for _, p := range a.Attendees {
		attendees = append(attendees, ProfileResponse{Username: p.Username, DisplayName: p.DisplayName, Image: p.Image})
	}
	return ActivityResponse{
		ID:           a.ID,
		Title:        a.Title,
		Date:         a.Date,
		Category:     a.Category,
		Description:  a.Description,
		City:         a.City,
		Venue:        a.Venue,
		HostUsername: a.HostUsername,
		IsCancelled:  a.IsCancelled,
		Attendees:    attendees,
	}
}

func mapActivities(items []domain.Activity) []ActivityResponse {
	res := make([]ActivityResponse, 0, len(items))
	for _, a := range items {
		res = append(res, activityResponse(a))
	}
	return res
}
