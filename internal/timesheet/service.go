package timesheet

import (
	"context"
	"errors"
	"math"
	"strings"

	"timesheets/internal/apperr"
	"timesheets/internal/store"
)

// MaxHoursPerEntry bounds hours_worked for a single day's entry.
const MaxHoursPerEntry = 24

// Service applies presence checks and defaults, and maps store failures to
// application errors.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// ListDevelopers returns every developer.
func (s *Service) ListDevelopers(ctx context.Context) ([]Developer, error) {
	devs, err := s.repo.ListDevelopers(ctx)
	if err != nil {
		return nil, s.storeError(err, "developer")
	}
	return devs, nil
}

// GetDeveloper returns one developer.
func (s *Service) GetDeveloper(ctx context.Context, id int64) (Developer, error) {
	d, err := s.repo.GetDeveloper(ctx, id)
	if err != nil {
		return Developer{}, s.storeError(err, "developer")
	}
	return d, nil
}

// CreateDeveloper validates req and persists a new developer.
func (s *Service) CreateDeveloper(ctx context.Context, req CreateDeveloperRequest) (Developer, error) {
	if err := missing(
		field{"name", req.Name == nil},
		field{"email", req.Email == nil},
		field{"position", req.Position == nil},
		field{"department", req.Department == nil},
	); err != nil {
		return Developer{}, err
	}

	d := Developer{
		Name:       *req.Name,
		Email:      *req.Email,
		Position:   *req.Position,
		Department: *req.Department,
	}
	if req.AvatarURL != nil {
		d.AvatarURL = *req.AvatarURL
	}

	created, err := s.repo.InsertDeveloper(ctx, d)
	if err != nil {
		return Developer{}, s.storeError(err, "developer")
	}
	return created, nil
}

// UpdateDeveloper applies the present slots of p.
func (s *Service) UpdateDeveloper(ctx context.Context, id int64, p DeveloperPatch) (Developer, error) {
	var set []assignment
	for _, slot := range []struct {
		column string
		value  Optional[string]
	}{
		{"name", p.Name},
		{"email", p.Email},
		{"position", p.Position},
		{"department", p.Department},
	} {
		if !slot.value.Set {
			continue
		}
		if slot.value.Null {
			return Developer{}, apperr.Newf(apperr.ValidationFailed, "%s cannot be null", slot.column)
		}
		set = append(set, assignment{slot.column, slot.value.Value})
	}
	if p.AvatarURL.Set {
		// null clears the avatar
		set = append(set, assignment{"avatar_url", p.AvatarURL.Value})
	}

	d, err := s.repo.UpdateDeveloper(ctx, id, set)
	if err != nil {
		return Developer{}, s.storeError(err, "developer")
	}
	return d, nil
}

// SetAvatar stores url as the developer's avatar.
func (s *Service) SetAvatar(ctx context.Context, id int64, url string) (Developer, error) {
	return s.UpdateDeveloper(ctx, id, DeveloperPatch{AvatarURL: Some(url)})
}

// DeleteDeveloper removes a developer and, through the schema, its entries.
func (s *Service) DeleteDeveloper(ctx context.Context, id int64) error {
	if err := s.repo.DeleteDeveloper(ctx, id); err != nil {
		return s.storeError(err, "developer")
	}
	return nil
}

// ListTimesheets returns entries newest first, optionally for one developer.
func (s *Service) ListTimesheets(ctx context.Context, developerID *int64) ([]Timesheet, error) {
	entries, err := s.repo.ListTimesheets(ctx, developerID)
	if err != nil {
		return nil, s.storeError(err, "timesheet")
	}
	return entries, nil
}

// GetTimesheet returns one entry.
func (s *Service) GetTimesheet(ctx context.Context, id int64) (Timesheet, error) {
	ts, err := s.repo.GetTimesheet(ctx, id)
	if err != nil {
		return Timesheet{}, s.storeError(err, "timesheet")
	}
	return ts, nil
}

// CreateTimesheet validates req, applies defaults and persists the entry.
func (s *Service) CreateTimesheet(ctx context.Context, req CreateTimesheetRequest) (Timesheet, error) {
	if err := missing(
		field{"developer_id", req.DeveloperID == nil},
		field{"date", req.Date == nil},
		field{"project_name", req.ProjectName == nil},
		field{"task_description", req.TaskDescription == nil},
		field{"hours_worked", req.HoursWorked == nil},
		field{"task_type", req.TaskType == nil},
	); err != nil {
		return Timesheet{}, err
	}

	developerID, err := parseDeveloperID(*req.DeveloperID)
	if err != nil {
		return Timesheet{}, err
	}
	date, err := parseDate(*req.Date)
	if err != nil {
		return Timesheet{}, err
	}
	hours, err := parseHours(*req.HoursWorked)
	if err != nil {
		return Timesheet{}, err
	}

	ts := Timesheet{
		DeveloperID:     developerID,
		Date:            date,
		ProjectName:     *req.ProjectName,
		TaskDescription: *req.TaskDescription,
		HoursWorked:     hours,
		TaskType:        *req.TaskType,
		Status:          DefaultStatus,
	}
	if req.Status != nil {
		ts.Status = *req.Status
	}
	if req.Notes != nil {
		ts.Notes = *req.Notes
	}

	created, err := s.repo.InsertTimesheet(ctx, ts)
	if err != nil {
		return Timesheet{}, s.storeError(err, "timesheet")
	}
	return created, nil
}

// UpdateTimesheet applies the present slots of p. date and hours_worked are
// re-parsed when supplied.
func (s *Service) UpdateTimesheet(ctx context.Context, id int64, p TimesheetPatch) (Timesheet, error) {
	var set []assignment

	if p.DeveloperID.Set {
		if p.DeveloperID.Null {
			return Timesheet{}, apperr.Newf(apperr.ValidationFailed, "developer_id cannot be null")
		}
		devID, err := parseDeveloperID(p.DeveloperID.Value)
		if err != nil {
			return Timesheet{}, err
		}
		set = append(set, assignment{"developer_id", devID})
	}
	if p.Date.Set {
		if p.Date.Null {
			return Timesheet{}, apperr.Newf(apperr.ValidationFailed, "date cannot be null")
		}
		date, err := parseDate(p.Date.Value)
		if err != nil {
			return Timesheet{}, err
		}
		set = append(set, assignment{"date", date})
	}
	for _, slot := range []struct {
		column string
		value  Optional[string]
	}{
		{"project_name", p.ProjectName},
		{"task_description", p.TaskDescription},
		{"task_type", p.TaskType},
	} {
		if !slot.value.Set {
			continue
		}
		if slot.value.Null {
			return Timesheet{}, apperr.Newf(apperr.ValidationFailed, "%s cannot be null", slot.column)
		}
		set = append(set, assignment{slot.column, slot.value.Value})
	}
	if p.HoursWorked.Set {
		if p.HoursWorked.Null {
			return Timesheet{}, apperr.Newf(apperr.ValidationFailed, "hours_worked cannot be null")
		}
		hours, err := parseHours(p.HoursWorked.Value)
		if err != nil {
			return Timesheet{}, err
		}
		set = append(set, assignment{"hours_worked", hours})
	}
	if p.Status.Set {
		status := p.Status.Value
		if p.Status.Null {
			status = DefaultStatus
		}
		set = append(set, assignment{"status", status})
	}
	if p.Notes.Set {
		set = append(set, assignment{"notes", p.Notes.Value})
	}

	ts, err := s.repo.UpdateTimesheet(ctx, id, set)
	if err != nil {
		return Timesheet{}, s.storeError(err, "timesheet")
	}
	return ts, nil
}

// DeleteTimesheet removes one entry.
func (s *Service) DeleteTimesheet(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTimesheet(ctx, id); err != nil {
		return s.storeError(err, "timesheet")
	}
	return nil
}

// Statistics returns the aggregates.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	st, err := s.repo.Statistics(ctx)
	if err != nil {
		return Statistics{}, apperr.Wrap(apperr.Internal, err)
	}
	return st, nil
}

func (s *Service) storeError(err error, resource string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return &apperr.Error{Code: apperr.NotFound, Message: resource + " not found", Err: err}
	case store.IsUniqueViolation(err):
		return apperr.Wrap(apperr.EmailExists, err)
	case store.IsForeignKeyViolation(err):
		return apperr.Wrap(apperr.InvalidReference, err)
	default:
		return apperr.Wrap(apperr.Internal, err)
	}
}

type field struct {
	name   string
	absent bool
}

func missing(fields ...field) error {
	var names []string
	for _, f := range fields {
		if f.absent {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return apperr.Newf(apperr.ValidationFailed, "missing required field: %s", strings.Join(names, ", "))
}

func parseDeveloperID(n Numeric) (int64, error) {
	id, err := n.Int64()
	if err != nil {
		return 0, apperr.Newf(apperr.ValidationFailed, "developer_id must be an integer")
	}
	return id, nil
}

func parseDate(s string) (Date, error) {
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, apperr.Newf(apperr.ValidationFailed, "date must be formatted YYYY-MM-DD")
	}
	return d, nil
}

func parseHours(n Numeric) (float64, error) {
	h, err := n.Float64()
	if err != nil {
		return 0, apperr.Newf(apperr.ValidationFailed, "hours_worked must be numeric")
	}
	if math.IsNaN(h) || math.IsInf(h, 0) || h < 0 || h > MaxHoursPerEntry {
		return 0, apperr.Newf(apperr.ValidationFailed, "hours_worked must be between 0 and %d", MaxHoursPerEntry)
	}
	return h, nil
}
