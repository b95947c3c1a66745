// Package store is the persistence layer over SQLite. Methods follow the
// repo conventions used across the codebase: ErrNotFound for missing rows,
// context-aware queries, and RowsAffected checks on writes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gatherly/internal/domain"
)

type Store struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const timeLayout = time.RFC3339

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s Store) InsertActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	res, err := tx.ExecContext(ctx, `INSERT INTO activities(id,title,date,category,description,city,venue,host_username,is_cancelled)
VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Title, a.Date.UTC().Format(timeLayout), a.Category, nullable(a.Description), a.City, a.Venue, a.HostUsername, boolInt(a.IsCancelled))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	a, err := scanActivity(s.DB.QueryRowContext(ctx, `SELECT id,title,date,category,COALESCE(description,'') AS description,city,venue,host_username,is_cancelled
FROM activities WHERE id=?`, id))
	if err != nil {
		return domain.Activity{}, err
	}
	attendees, err := s.listAttendees(ctx, []string{a.ID})
	if err != nil {
		return domain.Activity{}, err
	}
	a.Attendees = attendees[a.ID]
	if a.Attendees == nil {
		a.Attendees = []domain.Profile{}
	}
	return a, nil
}

func (s Store) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id,title,date,category,COALESCE(description,'') AS description,city,venue,host_username,is_cancelled
FROM activities ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	var ids []string
	for rows.Next() {
		var a domain.Activity
		var date string
		var cancelled int
		if err := rows.Scan(&a.ID, &a.Title, &date, &a.Category, &a.Description, &a.City, &a.Venue, &a.HostUsername, &cancelled); err != nil {
			return nil, err
		}
		a.Date = parseTime(date)
		a.IsCancelled = cancelled != 0
		res = append(res, a)
		ids = append(ids, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	attendees, err := s.listAttendees(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Attendees = attendees[res[i].ID]
		if res[i].Attendees == nil {
			res[i].Attendees = []domain.Profile{}
		}
	}
	return res, nil
}

// UpdateActivity overwrites the mutable fields of an activity. The host
// reference and attendee set are updated through their own operations.
func (s Store) UpdateActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	res, err := tx.ExecContext(ctx, `UPDATE activities SET title=?, date=?, category=?, description=?, city=?, venue=? WHERE id=?`,
		a.Title, a.Date.UTC().Format(timeLayout), a.Category, nullable(a.Description), a.City, a.Venue, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) DeleteActivity(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) SetCancelled(ctx context.Context, tx *sql.Tx, id string, cancelled bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE activities SET is_cancelled=? WHERE id=?`, boolInt(cancelled), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) AddAttendee(ctx context.Context, tx *sql.Tx, activityID, username string, joinedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO attendees(activity_id,username,joined_at) VALUES (?,?,?)`,
		activityID, username, joinedAt.UTC().Format(timeLayout))
	return err
}

func (s Store) RemoveAttendee(ctx context.Context, tx *sql.Tx, activityID, username string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM attendees WHERE activity_id=? AND username=?`, activityID, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) listAttendees(ctx context.Context, activityIDs []string) (map[string][]domain.Profile, error) {
	if len(activityIDs) == 0 {
		return map[string][]domain.Profile{}, nil
	}
	query := `SELECT at.activity_id, u.username, u.display_name, u.image
FROM attendees at JOIN users u ON u.username = at.username
WHERE at.activity_id IN (` + placeholders(len(activityIDs)) + `) ORDER BY at.joined_at ASC, u.username ASC`
	args := make([]any, len(activityIDs))
	for i, id := range activityIDs {
		args[i] = id
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string][]domain.Profile{}
	for rows.Next() {
		var activityID string
		var p domain.Profile
		var image sql.NullString
		if err := rows.Scan(&activityID, &p.Username, &p.DisplayName, &image); err != nil {
			return nil, err
		}
		if image.Valid {
			p.Image = &image.String
		}
		res[activityID] = append(res[activityID], p)
	}
	return res, rows.Err()
}

func scanActivity(row *sql.Row) (domain.Activity, error) {
	var a domain.Activity
	var date string
	var cancelled int
	err := row.Scan(&a.ID, &a.Title, &date, &a.Category, &a.Description, &a.City, &a.Venue, &a.HostUsername, &cancelled)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.Date = parseTime(date)
	a.IsCancelled = cancelled != 0
	return a, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	b := make([]byte, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
