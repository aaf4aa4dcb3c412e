package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/model"
	"github.com/Ross11547/Automatizacion/internal/repository"
)

var _ repository.AssignmentRepository = (*AssignmentDB)(nil)

// AssignmentDB is the user_subjects link table.
type AssignmentDB struct {
	conn *sql.DB
}

// Replace runs in one transaction; duplicate ids are stored once.
func (db *AssignmentDB) Replace(ctx context.Context, userID string, subjectIDs []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_subjects WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: clearing subjects of %s: %w", userID, err)
	}
	for _, id := range subjectIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_subjects (user_id, subject_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			userID, id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperror.ValidationFailed("materiaIds", "user or subject "+id+" does not exist")
			}
			return fmt.Errorf("sqlite: assigning subject %s to %s: %w", id, userID, err)
		}
	}
	return tx.Commit()
}

func (db *AssignmentDB) SubjectsByUser(ctx context.Context, userIDs ...string) (map[string][]model.Subject, error) {
	out := map[string][]model.Subject{}
	if len(userIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT us.user_id, s.id, s.name, s.code, s.career_id, COALESCE(c.name, ''),
		        COALESCE(c.faculty_id, ''), COALESCE(s.semester_id, '')
		 FROM user_subjects us
		 JOIN subjects s ON s.id = us.subject_id
		 LEFT JOIN careers c ON c.id = s.career_id
		 WHERE us.user_id IN (`+placeholders+`)
		 ORDER BY s.name`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing assigned subjects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID string
			sub    model.Subject
		)
		if err := rows.Scan(&userID, &sub.ID, &sub.Name, &sub.Code, &sub.CareerID, &sub.CareerName,
			&sub.FacultyID, &sub.SemesterID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning assigned subject: %w", err)
		}
		out[userID] = append(out[userID], sub)
	}
	return out, rows.Err()
}
