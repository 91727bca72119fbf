// Package timesheet holds developers, their daily work-log entries and the
// aggregate statistics computed over them.
package timesheet

import "time"

// DefaultStatus is stored when a new entry omits status.
const DefaultStatus = "Completed"

// Developer is a person who logs time.
type Developer struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Position   string    `json:"position"`
	Department string    `json:"department"`
	AvatarURL  string    `json:"avatar_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// Timesheet is one day's logged work by one developer on one project.
type Timesheet struct {
	ID              int64     `json:"id"`
	DeveloperID     int64     `json:"developer_id"`
	DeveloperName   string    `json:"developer_name"` // joined from developers
	Date            Date      `json:"date"`
	ProjectName     string    `json:"project_name"`
	TaskDescription string    `json:"task_description"`
	HoursWorked     float64   `json:"hours_worked"`
	TaskType        string    `json:"task_type"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
}

// Statistics aggregates over every developer and entry.
type Statistics struct {
	TotalDevelopers int64              `json:"total_developers"`
	TotalHours      float64            `json:"total_hours"`
	TotalEntries    int64              `json:"total_entries"`
	HoursByType     map[string]float64 `json:"hours_by_type"`
	HoursByProject  map[string]float64 `json:"hours_by_project"`
}

// CreateDeveloperRequest is the body of POST /api/developers.
type CreateDeveloperRequest struct {
	Name       *string `json:"name" binding:"required"`
	Email      *string `json:"email" binding:"required"`
	Position   *string `json:"position" binding:"required"`
	Department *string `json:"department" binding:"required"`
	AvatarURL  *string `json:"avatar_url"`
}

// DeveloperPatch is the body of PUT /api/developers/{id}. Only the slots
// present in the request are applied.
type DeveloperPatch struct {
	Name       Optional[string] `json:"name"`
	Email      Optional[string] `json:"email"`
	Position   Optional[string] `json:"position"`
	Department Optional[string] `json:"department"`
	AvatarURL  Optional[string] `json:"avatar_url"`
}

// CreateTimesheetRequest is the body of POST /api/timesheets.
type CreateTimesheetRequest struct {
	DeveloperID     *Numeric `json:"developer_id" binding:"required"`
	Date            *string  `json:"date" binding:"required"`
	ProjectName     *string  `json:"project_name" binding:"required"`
	TaskDescription *string  `json:"task_description" binding:"required"`
	HoursWorked     *Numeric `json:"hours_worked" binding:"required"`
	TaskType        *string  `json:"task_type" binding:"required"`
	Status          *string  `json:"status"`
	Notes           *string  `json:"notes"`
}

// TimesheetPatch is the body of PUT /api/timesheets/{id}.
type TimesheetPatch struct {
	DeveloperID     Optional[Numeric] `json:"developer_id"`
	Date            Optional[string]  `json:"date"`
	ProjectName     Optional[string]  `json:"project_name"`
	TaskDescription Optional[string]  `json:"task_description"`
	HoursWorked     Optional[Numeric] `json:"hours_worked"`
	TaskType        Optional[string]  `json:"task_type"`
	Status          Optional[string]  `json:"status"`
	Notes           Optional[string]  `json:"notes"`
}
