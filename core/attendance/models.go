package attendance

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
)

// Session statuses
const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Roles
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleUser       = "user"
)

// Status is the lifecycle status of a Session: scheduled -> active -> completed.
type Status string

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// Session is an attendance session as served by the backend. Read-only to this application.
type Session struct {
	ID              int         `json:"id"`
	Title           string      `json:"title"`
	Description     null.String `json:"description"`
	StartTime       Time        `json:"start_time"`
	DurationMinutes int         `json:"duration_minutes"`
	Status          Status      `json:"status"`
	Location        null.String `json:"location"`
	Records         []Record    `json:"records"`
}

// EndTime is StartTime + DurationMinutes.
func (s Session) EndTime() time.Time {
	return s.StartTime.Time.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// DisplayTitle is the Title or "#ID" when it is blank.
func (s Session) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return "#" + strconv.Itoa(s.ID)
}

// Record is created server-side, either by the recognition pipeline or by a manual mark.
type Record struct {
	UserID    int    `json:"user_id"`
	Name      string `json:"name"`
	Timestamp Time   `json:"timestamp"`
}

type User struct {
	ID             int         `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	OrganizationID int         `json:"organization_id"`
	ImageURL       null.String `json:"image_url"`
}

// Roster is the set of enrolled users of an organization.
type Roster struct {
	Users          []User `json:"users"`
	OrganizationID int    `json:"organization_id"`
}

// SessionSummary is an entry of the paginated session list.
type SessionSummary struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	Date            string `json:"date"`
	StartTime       Time   `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          Status `json:"status"`
	Attendees       int    `json:"attendees"`
	Location        string `json:"location"`
}

type Pagination struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

type SessionPage struct {
	Sessions   []SessionSummary `json:"sessions"`
	Pagination Pagination       `json:"pagination"`
}

// CaptureTarget identifies what a recognition process captures: a session through a camera.
type CaptureTarget struct {
	SessionID int `json:"session_id" validate:"required,gt=0"`
	Camera    int `json:"camera" validate:"min=0"`
}

func (t CaptureTarget) Validate(validate *validator.Validate) error { return validate.Struct(t) }

// MarkRequest is the manual "mark present" request.
type MarkRequest struct {
	UserID    int `json:"user_id" validate:"required,gt=0"`
	SessionID int `json:"session_id" validate:"required,gt=0"`
}

func (mr MarkRequest) Validate(validate *validator.Validate) error { return validate.Struct(mr) }
