// Package relational persists the directory into normalised SQL tables. The
// in-memory store stays the transactional engine; every committed change set
// is replayed against the database inside a single SQL transaction before the
// new in-memory state is published.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"schoolcore/internal/infra/persistence/memory"
	"schoolcore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.PersistentStore = (*Store)(nil)
	_ domain.JoinQuerier     = (*Store)(nil)
)

// Store mirrors the directory into SQL tables.
type Store struct {
	*memory.Store
	db      *sql.DB
	dialect Dialect
}

// Open applies the schema, hydrates the in-memory mirror from the tables and
// returns a store whose commits are written through to db.
func Open(ctx context.Context, db *sql.DB, dialect Dialect, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if err := applySchema(ctx, db, dialect); err != nil {
		return nil, domain.StorageUnavailable("apply schema", err)
	}
	s := &Store{db: db, dialect: dialect}
	opts = append(opts, memory.WithCommitHook(s.commit))
	s.Store = memory.NewStore(engine, opts...)
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.ImportState(snapshot)
	return s, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the SQL dialect in use.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) commit(ctx context.Context, changes []domain.Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageUnavailable("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, change := range changes {
		query, args, err := s.statementFor(change)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(query), args...); err != nil {
			return domain.StorageUnavailable(fmt.Sprintf("%s %s", change.Action, change.Entity), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.StorageUnavailable("commit", err)
	}
	committed = true
	return nil
}

func (s *Store) statementFor(change domain.Change) (string, []any, error) {
	switch change.Entity {
	case domain.EntitySchool:
		switch change.Action {
		case domain.ActionCreate:
			v := change.After.(domain.School)
			return `INSERT INTO schools (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
				[]any{v.ID, v.Name, unix(v.CreatedAt), unix(v.UpdatedAt)}, nil
		case domain.ActionUpdate:
			v := change.After.(domain.School)
			return `UPDATE schools SET name = ?, updated_at = ? WHERE id = ?`,
				[]any{v.Name, unix(v.UpdatedAt), v.ID}, nil
		case domain.ActionDelete:
			v := change.Before.(domain.School)
			return `DELETE FROM schools WHERE id = ?`, []any{v.ID}, nil
		}
	case domain.EntityCollege:
		switch change.Action {
		case domain.ActionCreate:
			v := change.After.(domain.College)
			return `INSERT INTO colleges (id, school_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
				[]any{v.ID, v.SchoolID, v.Name, unix(v.CreatedAt), unix(v.UpdatedAt)}, nil
		case domain.ActionUpdate:
			v := change.After.(domain.College)
			return `UPDATE colleges SET name = ?, updated_at = ? WHERE id = ?`,
				[]any{v.Name, unix(v.UpdatedAt), v.ID}, nil
		case domain.ActionDelete:
			v := change.Before.(domain.College)
			return `DELETE FROM colleges WHERE id = ?`, []any{v.ID}, nil
		}
	case domain.EntityStudent:
		switch change.Action {
		case domain.ActionCreate:
			v := change.After.(domain.Student)
			collegeID, collegeName := studentCollege(v)
			return `INSERT INTO students (id, first_name, last_name, school_id, college_id, college_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				[]any{v.ID, v.FirstName, v.LastName, v.SchoolID, collegeID, collegeName, unix(v.CreatedAt), unix(v.UpdatedAt)}, nil
		case domain.ActionUpdate:
			v := change.After.(domain.Student)
			collegeID, collegeName := studentCollege(v)
			return `UPDATE students SET first_name = ?, last_name = ?, school_id = ?, college_id = ?, college_name = ?, updated_at = ? WHERE id = ?`,
				[]any{v.FirstName, v.LastName, v.SchoolID, collegeID, collegeName, unix(v.UpdatedAt), v.ID}, nil
		case domain.ActionDelete:
			v := change.Before.(domain.Student)
			return `DELETE FROM students WHERE id = ?`, []any{v.ID}, nil
		}
	}
	return "", nil, fmt.Errorf("unsupported change %s %s", change.Action, change.Entity)
}

func studentCollege(s domain.Student) (sql.NullString, sql.NullString) {
	if !s.HasCollege() {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: *s.CollegeID, Valid: true}, sql.NullString{String: s.College, Valid: true}
}

func (s *Store) load(ctx context.Context) (domain.Snapshot, error) {
	var snapshot domain.Snapshot

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at, updated_at FROM schools ORDER BY id`)
	if err != nil {
		return snapshot, domain.StorageUnavailable("select schools", err)
	}
	for rows.Next() {
		var v domain.School
		var created, updated int64
		if err := rows.Scan(&v.ID, &v.Name, &created, &updated); err != nil {
			_ = rows.Close()
			return snapshot, domain.StorageUnavailable("scan schools", err)
		}
		v.CreatedAt, v.UpdatedAt = fromUnix(created), fromUnix(updated)
		snapshot.Schools = append(snapshot.Schools, v)
	}
	if err := closeRows(rows); err != nil {
		return snapshot, domain.StorageUnavailable("iterate schools", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, school_id, name, created_at, updated_at FROM colleges ORDER BY id`)
	if err != nil {
		return snapshot, domain.StorageUnavailable("select colleges", err)
	}
	for rows.Next() {
		var v domain.College
		var created, updated int64
		if err := rows.Scan(&v.ID, &v.SchoolID, &v.Name, &created, &updated); err != nil {
			_ = rows.Close()
			return snapshot, domain.StorageUnavailable("scan colleges", err)
		}
		v.CreatedAt, v.UpdatedAt = fromUnix(created), fromUnix(updated)
		snapshot.Colleges = append(snapshot.Colleges, v)
	}
	if err := closeRows(rows); err != nil {
		return snapshot, domain.StorageUnavailable("iterate colleges", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, first_name, last_name, school_id, college_id, college_name, created_at, updated_at FROM students ORDER BY id`)
	if err != nil {
		return snapshot, domain.StorageUnavailable("select students", err)
	}
	for rows.Next() {
		var v domain.Student
		var collegeID, collegeName sql.NullString
		var created, updated int64
		if err := rows.Scan(&v.ID, &v.FirstName, &v.LastName, &v.SchoolID, &collegeID, &collegeName, &created, &updated); err != nil {
			_ = rows.Close()
			return snapshot, domain.StorageUnavailable("scan students", err)
		}
		if collegeID.Valid && collegeID.String != "" {
			id := collegeID.String
			v.CollegeID = &id
			v.College = collegeName.String
		}
		v.CreatedAt, v.UpdatedAt = fromUnix(created), fromUnix(updated)
		snapshot.Students = append(snapshot.Students, v)
	}
	if err := closeRows(rows); err != nil {
		return snapshot, domain.StorageUnavailable("iterate students", err)
	}
	snapshot.Version = domain.SnapshotVersion
	return snapshot, nil
}

// joinQuery is the outer join over the three tables. The second branch adds
// students that are not in any college; a school without colleges therefore
// yields both a placeholder row and its students, which the query layer
// reconciles.
const joinQuery = `SELECT s.name, c.name, st.id, st.last_name, st.first_name
FROM schools s
LEFT JOIN colleges c ON c.school_id = s.id
LEFT JOIN students st ON st.college_id = c.id
UNION ALL
SELECT s.name, NULL, st.id, st.last_name, st.first_name
FROM schools s
JOIN students st ON st.school_id = s.id
WHERE st.college_id IS NULL`

// JoinRows answers the school/college/student report straight from SQL.
// Rows are unordered and may include placeholder rows for schools that also
// have collegeless students.
func (s *Store) JoinRows(ctx context.Context) ([]domain.JoinRow, error) {
	rows, err := s.db.QueryContext(ctx, joinQuery)
	if err != nil {
		return nil, domain.StorageUnavailable("join query", err)
	}
	var out []domain.JoinRow
	for rows.Next() {
		var school string
		var college, studentID, last, first sql.NullString
		if err := rows.Scan(&school, &college, &studentID, &last, &first); err != nil {
			_ = rows.Close()
			return nil, domain.StorageUnavailable("scan join", err)
		}
		row := domain.JoinRow{School: school}
		if college.Valid {
			name := college.String
			row.College = &name
		}
		if studentID.Valid {
			id := studentID.String
			full := domain.Student{FirstName: first.String, LastName: last.String}.FullName()
			row.StudentID = &id
			row.Student = &full
		}
		out = append(out, row)
	}
	if err := closeRows(rows); err != nil {
		return nil, domain.StorageUnavailable("iterate join", err)
	}
	return out, nil
}

func closeRows(rows *sql.Rows) error {
	iterErr := rows.Err()
	closeErr := rows.Close()
	if iterErr != nil {
		return iterErr
	}
	return closeErr
}

func unix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }
