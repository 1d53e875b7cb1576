package repository

import (
	"context"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
)

const semesterColumns = `id, name, is_current, start_date, end_date, created_at`

func scanSemester(row scanner) (model.Semester, error) {
	var sem model.Semester
	err := row.Scan(&sem.ID, &sem.Name, &sem.IsCurrent, &sem.StartDate, &sem.EndDate, &sem.CreatedAt)
	return sem, err
}

func (s *Store) ListSemesters(ctx context.Context) ([]model.Semester, error) {
	rows, err := s.db.Query(ctx, `SELECT `+semesterColumns+` FROM semesters ORDER BY id DESC`)
	return collect(rows, err, scanSemester)
}

func (s *Store) GetSemester(ctx context.Context, id int64) (model.Semester, error) {
	return scanSemester(s.db.QueryRow(ctx, `SELECT `+semesterColumns+` FROM semesters WHERE id = $1`, id))
}

func (s *Store) CreateSemester(ctx context.Context, sem model.Semester) (model.Semester, error) {
	created, err := scanSemester(s.db.QueryRow(ctx, `
		INSERT INTO semesters (name, is_current, start_date, end_date)
		VALUES ($1, $2, $3, $4)
		RETURNING `+semesterColumns,
		sem.Name, sem.IsCurrent, sem.StartDate, sem.EndDate,
	))
	return created, mapErr(err)
}

// SetCurrentSemester makes id the only current semester.
func (s *Store) SetCurrentSemester(ctx context.Context, id int64) (model.Semester, error) {
	var out model.Semester
	err := s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.db.Exec(ctx, `UPDATE semesters SET is_current = false WHERE is_current AND id <> $1`, id); err != nil {
			return err
		}
		var err error
		out, err = scanSemester(tx.db.QueryRow(ctx, `
			UPDATE semesters SET is_current = true WHERE id = $1
			RETURNING `+semesterColumns, id))
		return err
	})
	return out, err
}

func (s *Store) DeleteSemester(ctx context.Context, id int64) error {
	return affected(s.db.Exec(ctx, `DELETE FROM semesters WHERE id = $1`, id))
}
