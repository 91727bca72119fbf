package timesheet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"timesheets/internal/store"
)

// ErrNotFound is returned when no row matches the requested id.
var ErrNotFound = errors.New("record not found")

// Repository persists developers and timesheet entries.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// assignment is one column = value pair of an UPDATE.
type assignment struct {
	column string
	value  any
}

const developerColumns = `id, name, email, position, department, avatar_url, created_at`

const timesheetSelect = `
	SELECT t.id, t.developer_id, COALESCE(d.name, ''), t.date, t.project_name, t.task_description,
	       t.hours_worked, t.task_type, t.status, t.notes, t.created_at
	FROM timesheets t
	LEFT JOIN developers d ON d.id = t.developer_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanDeveloper(row scanner) (Developer, error) {
	var d Developer
	if err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Position, &d.Department, &d.AvatarURL, &d.CreatedAt); err != nil {
		return Developer{}, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

func scanTimesheet(row scanner) (Timesheet, error) {
	var ts Timesheet
	if err := row.Scan(&ts.ID, &ts.DeveloperID, &ts.DeveloperName, &ts.Date, &ts.ProjectName, &ts.TaskDescription,
		&ts.HoursWorked, &ts.TaskType, &ts.Status, &ts.Notes, &ts.CreatedAt); err != nil {
		return Timesheet{}, err
	}
	ts.CreatedAt = ts.CreatedAt.UTC()
	return ts, nil
}

// ListDevelopers returns all developers, newest first.
func (r *Repository) ListDevelopers(ctx context.Context) ([]Developer, error) {
	rows, err := r.db.Client.QueryContext(ctx,
		`SELECT `+developerColumns+` FROM developers ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list developers: %w", err)
	}
	defer rows.Close()

	developers := []Developer{}
	for rows.Next() {
		d, err := scanDeveloper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan developer: %w", err)
		}
		developers = append(developers, d)
	}
	return developers, rows.Err()
}

// GetDeveloper returns a single developer by id.
func (r *Repository) GetDeveloper(ctx context.Context, id int64) (Developer, error) {
	row := r.db.Client.QueryRowContext(ctx,
		r.db.Rebind(`SELECT `+developerColumns+` FROM developers WHERE id = ?`), id)
	d, err := scanDeveloper(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Developer{}, ErrNotFound
		}
		return Developer{}, fmt.Errorf("get developer %d: %w", id, err)
	}
	return d, nil
}

// InsertDeveloper writes a new developer and returns it with id and created_at set.
func (r *Repository) InsertDeveloper(ctx context.Context, d Developer) (Developer, error) {
	d.CreatedAt = now()
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO developers (name, email, position, department, avatar_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), d.Name, d.Email, d.Position, d.Department, d.AvatarURL, d.CreatedAt)
	if err := row.Scan(&d.ID); err != nil {
		return Developer{}, fmt.Errorf("insert developer: %w", err)
	}
	return d, nil
}

// UpdateDeveloper applies set to the developer and returns the stored row.
func (r *Repository) UpdateDeveloper(ctx context.Context, id int64, set []assignment) (Developer, error) {
	if err := r.update(ctx, "developers", id, set); err != nil {
		return Developer{}, err
	}
	return r.GetDeveloper(ctx, id)
}

// DeleteDeveloper removes the developer; the schema cascades to its entries.
func (r *Repository) DeleteDeveloper(ctx context.Context, id int64) error {
	return r.delete(ctx, "developers", id)
}

// ListTimesheets returns entries newest date first, optionally for one developer.
func (r *Repository) ListTimesheets(ctx context.Context, developerID *int64) ([]Timesheet, error) {
	query := timesheetSelect
	var args []any
	if developerID != nil {
		query += ` WHERE t.developer_id = ?`
		args = append(args, *developerID)
	}
	query += ` ORDER BY t.date DESC, t.id DESC`

	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list timesheets: %w", err)
	}
	defer rows.Close()

	entries := []Timesheet{}
	for rows.Next() {
		ts, err := scanTimesheet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timesheet: %w", err)
		}
		entries = append(entries, ts)
	}
	return entries, rows.Err()
}

// GetTimesheet returns a single entry with the owning developer's name.
func (r *Repository) GetTimesheet(ctx context.Context, id int64) (Timesheet, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(timesheetSelect+` WHERE t.id = ?`), id)
	ts, err := scanTimesheet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Timesheet{}, ErrNotFound
		}
		return Timesheet{}, fmt.Errorf("get timesheet %d: %w", id, err)
	}
	return ts, nil
}

// InsertTimesheet writes a new entry and reads it back with developer_name resolved.
func (r *Repository) InsertTimesheet(ctx context.Context, ts Timesheet) (Timesheet, error) {
	var id int64
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO timesheets (developer_id, date, project_name, task_description, hours_worked, task_type, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), ts.DeveloperID, ts.Date, ts.ProjectName, ts.TaskDescription, ts.HoursWorked, ts.TaskType, ts.Status, ts.Notes, now())
	if err := row.Scan(&id); err != nil {
		return Timesheet{}, fmt.Errorf("insert timesheet: %w", err)
	}
	return r.GetTimesheet(ctx, id)
}

// UpdateTimesheet applies set to the entry and returns the stored row.
func (r *Repository) UpdateTimesheet(ctx context.Context, id int64, set []assignment) (Timesheet, error) {
	if err := r.update(ctx, "timesheets", id, set); err != nil {
		return Timesheet{}, err
	}
	return r.GetTimesheet(ctx, id)
}

// DeleteTimesheet removes one entry.
func (r *Repository) DeleteTimesheet(ctx context.Context, id int64) error {
	return r.delete(ctx, "timesheets", id)
}

// Statistics computes the dashboard aggregates.
func (r *Repository) Statistics(ctx context.Context) (Statistics, error) {
	st := Statistics{}
	db := r.db.Client

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM developers`).Scan(&st.TotalDevelopers); err != nil {
		return Statistics{}, fmt.Errorf("count developers: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(hours_worked), 0.0) FROM timesheets`).Scan(&st.TotalHours); err != nil {
		return Statistics{}, fmt.Errorf("sum hours: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM timesheets`).Scan(&st.TotalEntries); err != nil {
		return Statistics{}, fmt.Errorf("count timesheets: %w", err)
	}
	st.TotalHours = round2(st.TotalHours)

	var err error
	if st.HoursByType, err = r.sumHoursBy(ctx, "task_type"); err != nil {
		return Statistics{}, err
	}
	if st.HoursByProject, err = r.sumHoursBy(ctx, "project_name"); err != nil {
		return Statistics{}, err
	}
	return st, nil
}

// sumHoursBy groups hours by column. column is never user input.
func (r *Repository) sumHoursBy(ctx context.Context, column string) (map[string]float64, error) {
	rows, err := r.db.Client.QueryContext(ctx,
		`SELECT `+column+`, SUM(hours_worked) FROM timesheets GROUP BY `+column)
	if err != nil {
		return nil, fmt.Errorf("hours by %s: %w", column, err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var key string
		var hours float64
		if err := rows.Scan(&key, &hours); err != nil {
			return nil, fmt.Errorf("scan hours by %s: %w", column, err)
		}
		out[key] = round2(hours)
	}
	return out, rows.Err()
}

func (r *Repository) update(ctx context.Context, table string, id int64, set []assignment) error {
	if len(set) == 0 {
		return r.exists(ctx, table, id)
	}

	clauses := make([]string, 0, len(set))
	args := make([]any, 0, len(set)+1)
	for _, a := range set {
		clauses = append(clauses, a.column+" = ?")
		args = append(args, a.value)
	}
	args = append(args, id)

	query := `UPDATE ` + table + ` SET ` + strings.Join(clauses, ", ") + ` WHERE id = ?`
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", table, id, err)
	}
	return affected(res)
}

func (r *Repository) delete(ctx context.Context, table string, id int64) error {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`DELETE FROM `+table+` WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", table, id, err)
	}
	return affected(res)
}

func (r *Repository) exists(ctx context.Context, table string, id int64) error {
	var one int
	err := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`SELECT 1 FROM `+table+` WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
