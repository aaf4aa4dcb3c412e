package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

var (
	_ repository.SemesterRepository = (*SemesterDB)(nil)
	_ repository.ScheduleRepository = (*ScheduleDB)(nil)
)

// SemesterDB is the semesters store. Reads join the career name.
type SemesterDB struct {
	conn *sql.DB
}

const semesterSelect = `SELECT s.id, s.number, s.label, s.career_id, COALESCE(c.name, '')
	FROM semesters s LEFT JOIN careers c ON c.id = s.career_id`

func (db *SemesterDB) Create(ctx context.Context, s *model.Semester) error {
	s.ID = xid.New().String()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO semesters (id, number, label, career_id) VALUES (?, ?, ?, ?)`,
		s.ID, s.Number, s.Label, s.CareerID)
	return semesterWriteError(err, "inserting semester")
}

func (db *SemesterDB) GetByID(ctx context.Context, id string) (*model.Semester, error) {
	var s model.Semester
	err := db.conn.QueryRowContext(ctx, semesterSelect+` WHERE s.id = ?`, id).
		Scan(&s.ID, &s.Number, &s.Label, &s.CareerID, &s.CareerName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("semester", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting semester %s: %w", id, err)
	}
	return &s, nil
}

func (db *SemesterDB) List(ctx context.Context, careerID string) ([]model.Semester, error) {
	query := semesterSelect
	var args []any
	if careerID != "" {
		query += ` WHERE s.career_id = ?`
		args = append(args, careerID)
	}
	query += ` ORDER BY c.name, s.career_id, s.number`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing semesters: %w", err)
	}
	defer rows.Close()

	out := []model.Semester{}
	for rows.Next() {
		var s model.Semester
		if err := rows.Scan(&s.ID, &s.Number, &s.Label, &s.CareerID, &s.CareerName); err != nil {
			return nil, fmt.Errorf("sqlite: scanning semester: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *SemesterDB) Update(ctx context.Context, s *model.Semester) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE semesters SET number = ?, label = ?, career_id = ? WHERE id = ?`,
		s.Number, s.Label, s.CareerID, s.ID)
	if err := semesterWriteError(err, "updating semester "+s.ID); err != nil {
		return err
	}
	return requireAffected(res, "semester", s.ID)
}

// Delete detaches the semester's subjects and students before removing it.
func (db *SemesterDB) Delete(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE subjects SET semester_id = NULL WHERE semester_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: detaching subjects from semester %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM semesters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting semester %s: %w", id, err)
	}
	if err := requireAffected(res, "semester", id); err != nil {
		return err
	}
	return tx.Commit()
}

func semesterWriteError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return apperror.ValidationFailed("numero", "the career already has a semester with that number")
	case isForeignKeyViolation(err):
		return apperror.ValidationFailed("carreraId", "career does not exist")
	default:
		return fmt.Errorf("sqlite: %s: %w", op, err)
	}
}

// ScheduleDB is the schedules store. Reads join the subject name.
type ScheduleDB struct {
	conn *sql.DB
}

const scheduleSelect = `SELECT h.id, h.subject_id, COALESCE(s.name, ''), h.day, h.start_time, h.end_time, h.room
	FROM schedules h LEFT JOIN subjects s ON s.id = h.subject_id`

// dayOrder sorts LUNES first instead of alphabetically.
const dayOrder = `CASE h.day WHEN 'LUNES' THEN 1 WHEN 'MARTES' THEN 2 WHEN 'MIERCOLES' THEN 3
	WHEN 'JUEVES' THEN 4 WHEN 'VIERNES' THEN 5 WHEN 'SABADO' THEN 6 ELSE 7 END`

func (db *ScheduleDB) Create(ctx context.Context, s *model.Schedule) error {
	s.ID = xid.New().String()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO schedules (id, subject_id, day, start_time, end_time, room) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.SubjectID, s.Day, s.Start, s.End, s.Room)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("materiaId", "subject does not exist")
		}
		return fmt.Errorf("sqlite: inserting schedule: %w", err)
	}
	return nil
}

func (db *ScheduleDB) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	row := db.conn.QueryRowContext(ctx, scheduleSelect+` WHERE h.id = ?`, id)
	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("schedule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting schedule %s: %w", id, err)
	}
	return s, nil
}

func (db *ScheduleDB) List(ctx context.Context, subjectID string) ([]model.Schedule, error) {
	query := scheduleSelect
	var args []any
	if subjectID != "" {
		query += ` WHERE h.subject_id = ?`
		args = append(args, subjectID)
	}
	query += ` ORDER BY ` + dayOrder + `, h.start_time`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing schedules: %w", err)
	}
	defer rows.Close()

	out := []model.Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning schedule: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (db *ScheduleDB) Update(ctx context.Context, s *model.Schedule) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE schedules SET subject_id = ?, day = ?, start_time = ?, end_time = ?, room = ? WHERE id = ?`,
		s.SubjectID, s.Day, s.Start, s.End, s.Room, s.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.ValidationFailed("materiaId", "subject does not exist")
		}
		return fmt.Errorf("sqlite: updating schedule %s: %w", s.ID, err)
	}
	return requireAffected(res, "schedule", s.ID)
}

func (db *ScheduleDB) Delete(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting schedule %s: %w", id, err)
	}
	return requireAffected(res, "schedule", id)
}

func (db *ScheduleDB) Overlaps(ctx context.Context, subjectID, day, start, end, excludeID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schedules
		 WHERE subject_id = ? AND day = ? AND id <> ? AND start_time < ? AND end_time > ?`,
		subjectID, day, excludeID, end, start).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking schedule overlap: %w", err)
	}
	return n > 0, nil
}

func scanSchedule(s scanner) (*model.Schedule, error) {
	var h model.Schedule
	if err := s.Scan(&h.ID, &h.SubjectID, &h.SubjectName, &h.Day, &h.Start, &h.End, &h.Room); err != nil {
		return nil, err
	}
	return &h, nil
}
