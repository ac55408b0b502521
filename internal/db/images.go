package db

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/pwalhed/photodex/internal/catalog"
	"github.com/pwalhed/photodex/internal/errors"
)

// ErrUniqueConstraint is returned when an insert violates the content-hash
// UNIQUE constraint. Callers pre-check with ContentHashExists, so hitting
// this indicates a dedup race between concurrent writers.
var ErrUniqueConstraint = errors.NewUniqueConstraint("content hash already exists")

// InsertImageWithMetadata stores a new image row together with its metadata
// entries in a single transaction, so a crash never leaves an image without
// its metadata or vice versa. Returns the new image id.
func InsertImageWithMetadata(db *sql.DB, img *catalog.Image, entries []catalog.MetadataEntry) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO images (
			session_id, relative_path, sub_folder, filename,
			content_hash, perceptual_hash, width, height,
			orientation_applied, has_faces, thumbnail, size_bytes, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		img.SessionID, img.RelativePath, img.SubFolder, img.Filename,
		img.ContentHash, img.PerceptualHash, img.Width, img.Height,
		boolToInt(img.OrientationApplied), boolToInt(img.HasFaces),
		img.Thumbnail, img.SizeBytes, img.ProcessedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, ErrUniqueConstraint
		}
		return 0, errors.NewInternal(err)
	}

	imageID, err := result.LastInsertId()
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	if err := insertMetadataTx(tx, imageID, entries); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return imageID, nil
}

// ReplaceMetadata replaces an image's metadata entries wholesale.
func ReplaceMetadata(db *sql.DB, imageID int64, entries []catalog.MetadataEntry) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM image_metadata WHERE image_id = ?`, imageID); err != nil {
		return errors.NewInternal(err)
	}
	if err := insertMetadataTx(tx, imageID, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// insertMetadataTx inserts metadata entries within an open transaction.
// Duplicate keys within one file keep the last extracted value.
func insertMetadataTx(tx *sql.Tx, imageID int64, entries []catalog.MetadataEntry) error {
	for _, e := range entries {
		_, err := tx.Exec(
			`INSERT INTO image_metadata (image_id, meta_key, meta_value, meta_source)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(image_id, meta_key) DO UPDATE SET
			   meta_value = excluded.meta_value,
			   meta_source = excluded.meta_source`,
			imageID, e.Key, e.Value, e.Source,
		)
		if err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

// ContentHashExists reports whether an image with the given content hash
// is already in the catalog.
func ContentHashExists(db *sql.DB, hash []byte) (bool, error) {
	var one int
	err := db.QueryRow(`SELECT 1 FROM images WHERE content_hash = ?`, hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// GetImageByHash retrieves the image with the given content hash.
func GetImageByHash(db *sql.DB, hash []byte) (*catalog.Image, error) {
	row := db.QueryRow(
		`SELECT image_id, session_id, relative_path, sub_folder, filename,
			content_hash, perceptual_hash, width, height,
			orientation_applied, has_faces, size_bytes, processed_at
		 FROM images WHERE content_hash = ?`, hash,
	)
	img, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("image by content hash")
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return img, nil
}

// GetImage retrieves one image by id (without its thumbnail blob).
func GetImage(db *sql.DB, imageID int64) (*catalog.Image, error) {
	row := db.QueryRow(
		`SELECT image_id, session_id, relative_path, sub_folder, filename,
			content_hash, perceptual_hash, width, height,
			orientation_applied, has_faces, size_bytes, processed_at
		 FROM images WHERE image_id = ?`, imageID,
	)
	img, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("image " + strconv.FormatInt(imageID, 10))
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return img, nil
}

// GetThumbnail returns the stored thumbnail bytes for an image.
func GetThumbnail(db *sql.DB, imageID int64) ([]byte, error) {
	var thumb []byte
	err := db.QueryRow(`SELECT thumbnail FROM images WHERE image_id = ?`, imageID).Scan(&thumb)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("image " + strconv.FormatInt(imageID, 10))
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return thumb, nil
}

// GetMetadata returns an image's metadata entries ordered by key.
func GetMetadata(db *sql.DB, imageID int64) ([]catalog.MetadataEntry, error) {
	rows, err := db.Query(
		`SELECT meta_key, meta_value, meta_source FROM image_metadata
		 WHERE image_id = ? ORDER BY meta_key`, imageID,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var entries []catalog.MetadataEntry
	for rows.Next() {
		var e catalog.MetadataEntry
		var value, source sql.NullString
		if err := rows.Scan(&e.Key, &value, &source); err != nil {
			return nil, errors.NewInternal(err)
		}
		e.Value = value.String
		e.Source = source.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

// SetHasFaces flags an image as containing detected faces. Surface for the
// external detection workload.
func SetHasFaces(db *sql.DB, imageID int64, hasFaces bool) error {
	result, err := db.Exec(
		`UPDATE images SET has_faces = ? WHERE image_id = ?`,
		boolToInt(hasFaces), imageID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rows == 0 {
		return errors.NewNotFound("image " + strconv.FormatInt(imageID, 10))
	}
	return nil
}

// CountImages returns the total number of images in the catalog.
func CountImages(db *sql.DB) (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM images`).Scan(&count); err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}

// scanImage scans an image row from the non-thumbnail column set.
func scanImage(row *sql.Row) (*catalog.Image, error) {
	img := &catalog.Image{}
	var orientationApplied, hasFaces int
	err := row.Scan(
		&img.ID, &img.SessionID, &img.RelativePath, &img.SubFolder, &img.Filename,
		&img.ContentHash, &img.PerceptualHash, &img.Width, &img.Height,
		&orientationApplied, &hasFaces, &img.SizeBytes, &img.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	img.OrientationApplied = orientationApplied != 0
	img.HasFaces = hasFaces != 0
	return img, nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
