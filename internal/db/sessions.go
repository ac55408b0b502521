package db

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/pwalhed/photodex/internal/catalog"
	"github.com/pwalhed/photodex/internal/errors"
)

// CreateSession inserts a new import session and returns its id.
func CreateSession(db *sql.DB, folderCount int) (int64, error) {
	result, err := db.Exec(
		`INSERT INTO sessions (created_at, folder_count, image_count) VALUES (?, ?, 0)`,
		time.Now().Unix(), folderCount,
	)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return id, nil
}

// IncrementSessionImageCount adds delta to a session's image count.
func IncrementSessionImageCount(db *sql.DB, sessionID int64, delta int) error {
	result, err := db.Exec(
		`UPDATE sessions SET image_count = image_count + ? WHERE session_id = ?`,
		delta, sessionID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rows == 0 {
		return errors.NewNotFound(sessionIdentifier(sessionID))
	}
	return nil
}

// GetSession retrieves one session by id.
func GetSession(db *sql.DB, sessionID int64) (*catalog.Session, error) {
	row := db.QueryRow(
		`SELECT session_id, created_at, folder_count, image_count
		 FROM sessions WHERE session_id = ?`, sessionID,
	)
	s := &catalog.Session{}
	err := row.Scan(&s.ID, &s.CreatedAt, &s.FolderCount, &s.ImageCount)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(sessionIdentifier(sessionID))
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// ListSessions returns all sessions, newest first.
func ListSessions(db *sql.DB) ([]catalog.Session, error) {
	rows, err := db.Query(
		`SELECT session_id, created_at, folder_count, image_count
		 FROM sessions ORDER BY session_id DESC`,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var sessions []catalog.Session
	for rows.Next() {
		var s catalog.Session
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.FolderCount, &s.ImageCount); err != nil {
			return nil, errors.NewInternal(err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return sessions, nil
}

// DeleteSession removes a session and, via cascade, its images and their
// metadata. Returns the number of images deleted with it.
func DeleteSession(db *sql.DB, sessionID int64) (int, error) {
	var images int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM images WHERE session_id = ?`, sessionID,
	).Scan(&images); err != nil {
		return 0, errors.NewInternal(err)
	}

	result, err := db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if rows == 0 {
		return 0, errors.NewNotFound(sessionIdentifier(sessionID))
	}
	return images, nil
}

func sessionIdentifier(id int64) string {
	return "session " + strconv.FormatInt(id, 10)
}
