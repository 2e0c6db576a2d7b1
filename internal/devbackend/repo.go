package devbackend

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/applysync/internal/apperr"
	"github.com/starford/applysync/internal/models"
	"github.com/starford/applysync/internal/status"
)

// Fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const appColumns = `application_id, company, job_title, job_description, status, applied_date, resume_id, cv_id, created_at`

// ListFilter selects applications for GET /applications.
type ListFilter struct {
	Status status.Wire
	Text   string
	Limit  int
	Offset int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(r rowScanner) (models.Application, error) {
	var (
		a       models.Application
		st      string
		applied sql.NullString
		created string
	)
	if err := r.Scan(&a.ID, &a.Company, &a.JobTitle, &a.JobDescription, &st, &applied, &a.ResumeID, &a.CVID, &created); err != nil {
		return models.Application{}, err
	}
	a.Status = status.Wire(st)
	if applied.Valid && applied.String != "" {
		d, err := models.ParseDate(applied.String)
		if err != nil {
			return models.Application{}, fmt.Errorf("devbackend: applied_date: %w", err)
		}
		a.AppliedDate = &d
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return models.Application{}, fmt.Errorf("devbackend: created_at: %w", err)
	}
	a.CreatedAt = t
	return a, nil
}

func dateValue(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// ListApplications returns one page, newest first, and the total match count.
func (db *DB) ListApplications(f ListFilter) ([]models.Application, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Text != "" {
		where = append(where, "(company LIKE ? OR job_title LIKE ? OR job_description LIKE ?)")
		like := "%" + f.Text + "%"
		args = append(args, like, like, like)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM applications`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("devbackend: count applications: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	q := `SELECT ` + appColumns + ` FROM applications` + clause +
		` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("devbackend: list applications: %w", err)
	}
	defer rows.Close()

	out := []models.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// GetApplication returns one application or apperr.ErrNotFound.
func (db *DB) GetApplication(id string) (models.Application, error) {
	a, err := scanApplication(db.conn.QueryRow(`SELECT `+appColumns+` FROM applications WHERE application_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Application{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Application{}, fmt.Errorf("devbackend: get application: %w", err)
	}
	return a, nil
}

// CreateApplication inserts a new record with a server-assigned id.
func (db *DB) CreateApplication(in models.CreateApplication, now time.Time) (models.Application, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return models.Application{}, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	if in.Status == "" {
		in.Status = status.WireApplied
	}
	a := in.Placeholder(uuid.NewString(), now.UTC())
	if err := db.insertApplication(a); err != nil {
		return models.Application{}, err
	}
	return a, nil
}

// InsertApplication stores a fully formed record, keeping its id and
// created_at. Used for seeding.
func (db *DB) InsertApplication(a models.Application) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return db.insertApplication(a)
}

func (db *DB) insertApplication(a models.Application) error {
	_, err := db.conn.Exec(`INSERT INTO applications (`+appColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Company, a.JobTitle, a.JobDescription, string(a.Status), dateValue(a.AppliedDate),
		a.ResumeID, a.CVID, a.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("devbackend: insert application: %w", err)
	}
	return nil
}

// UpdateApplication applies a partial update and returns the new record.
func (db *DB) UpdateApplication(id string, p models.ApplicationPatch) (models.Application, error) {
	if err := p.Validate(); err != nil {
		return models.Application{}, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	cur, err := db.GetApplication(id)
	if err != nil {
		return models.Application{}, err
	}
	next := p.Apply(cur)
	_, err = db.conn.Exec(`UPDATE applications SET company = ?, job_title = ?, job_description = ?, status = ?,
		applied_date = ?, resume_id = ?, cv_id = ? WHERE application_id = ?`,
		next.Company, next.JobTitle, next.JobDescription, string(next.Status), dateValue(next.AppliedDate),
		next.ResumeID, next.CVID, id)
	if err != nil {
		return models.Application{}, fmt.Errorf("devbackend: update application: %w", err)
	}
	return next, nil
}

// MoveApplication sets the status of one application.
func (db *DB) MoveApplication(id string, s status.Wire) error {
	res, err := db.conn.Exec(`UPDATE applications SET status = ? WHERE application_id = ?`, string(s), id)
	if err != nil {
		return fmt.Errorf("devbackend: move application: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteApplication removes one application and its notes.
func (db *DB) DeleteApplication(id string) error {
	res, err := db.conn.Exec(`DELETE FROM applications WHERE application_id = ?`, id)
	if err != nil {
		return fmt.Errorf("devbackend: delete application: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// BulkMove moves every existing id and returns how many were updated.
// skip lists ids that must be left untouched.
func (db *DB) BulkMove(ids []string, s status.Wire, skip map[string]bool) (int, error) {
	return db.bulk(ids, skip, `UPDATE applications SET status = ? WHERE application_id = ?`, string(s))
}

// BulkDelete deletes every existing id and returns how many were removed.
func (db *DB) BulkDelete(ids []string, skip map[string]bool) (int, error) {
	return db.bulk(ids, skip, `DELETE FROM applications WHERE application_id = ?`)
}

func (db *DB) bulk(ids []string, skip map[string]bool, stmtSQL string, lead ...any) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("devbackend: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(stmtSQL)
	if err != nil {
		return 0, fmt.Errorf("devbackend: prepare bulk: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, id := range ids {
		if skip[id] {
			continue
		}
		res, err := stmt.Exec(append(append([]any{}, lead...), id)...)
		if err != nil {
			return 0, fmt.Errorf("devbackend: bulk exec: %w", err)
		}
		if k, _ := res.RowsAffected(); k > 0 {
			n++
		}
	}
	return n, tx.Commit()
}

func scanNote(r rowScanner) (models.Note, error) {
	var (
		n       models.Note
		created string
	)
	if err := r.Scan(&n.ID, &n.ApplicationID, &n.Content, &created); err != nil {
		return models.Note{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return models.Note{}, fmt.Errorf("devbackend: note created_at: %w", err)
	}
	n.CreatedAt = t
	return n, nil
}

// ListNotes returns the notes of an application, newest first.
func (db *DB) ListNotes(appID string) ([]models.Note, error) {
	if _, err := db.GetApplication(appID); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`SELECT note_id, application_id, content, created_at FROM notes
		WHERE application_id = ? ORDER BY created_at DESC, rowid DESC`, appID)
	if err != nil {
		return nil, fmt.Errorf("devbackend: list notes: %w", err)
	}
	defer rows.Close()
	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CreateNote adds a note to an application.
func (db *DB) CreateNote(appID string, in models.NoteInput, now time.Time) (models.Note, error) {
	in, err := models.NewNoteInput(in.Content)
	if err != nil {
		return models.Note{}, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	if _, err := db.GetApplication(appID); err != nil {
		return models.Note{}, err
	}
	n := models.Note{ID: uuid.NewString(), ApplicationID: appID, Content: in.Content, CreatedAt: now.UTC()}
	_, err = db.conn.Exec(`INSERT INTO notes (note_id, application_id, content, created_at) VALUES (?, ?, ?, ?)`,
		n.ID, n.ApplicationID, n.Content, n.CreatedAt.Format(timeLayout))
	if err != nil {
		return models.Note{}, fmt.Errorf("devbackend: insert note: %w", err)
	}
	return n, nil
}

// UpdateNote replaces the content of a note.
func (db *DB) UpdateNote(appID, noteID string, in models.NoteInput) (models.Note, error) {
	in, err := models.NewNoteInput(in.Content)
	if err != nil {
		return models.Note{}, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	res, err := db.conn.Exec(`UPDATE notes SET content = ? WHERE note_id = ? AND application_id = ?`, in.Content, noteID, appID)
	if err != nil {
		return models.Note{}, fmt.Errorf("devbackend: update note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Note{}, apperr.ErrNotFound
	}
	n, err := scanNote(db.conn.QueryRow(`SELECT note_id, application_id, content, created_at FROM notes WHERE note_id = ?`, noteID))
	if err != nil {
		return models.Note{}, fmt.Errorf("devbackend: reread note: %w", err)
	}
	return n, nil
}

// DeleteNote removes a note.
func (db *DB) DeleteNote(appID, noteID string) error {
	res, err := db.conn.Exec(`DELETE FROM notes WHERE note_id = ? AND application_id = ?`, noteID, appID)
	if err != nil {
		return fmt.Errorf("devbackend: delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
