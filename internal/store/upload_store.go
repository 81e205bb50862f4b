package store

import (
	"github.com/vrsandeep/oilspill-go/internal/models"
)

// CreateUpload records a completed upload and returns it with its new ID.
func (s *Store) CreateUpload(u *models.Upload) (*models.Upload, error) {
	res, err := s.db.Exec(
		"INSERT INTO uploads (file_id, name, size, content_type, uploaded_at) VALUES (?, ?, ?, ?, ?)",
		u.FileID, u.Name, u.Size, u.ContentType, u.UploadedAt.UTC(),
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	created := *u
	created.ID = id
	return &created, nil
}

// ListUploads returns the most recent uploads, newest first.
func (s *Store) ListUploads(limit int) ([]*models.Upload, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, name, size, content_type, uploaded_at FROM uploads ORDER BY uploaded_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := []*models.Upload{}
	for rows.Next() {
		var u models.Upload
		if err := rows.Scan(&u.ID, &u.FileID, &u.Name, &u.Size, &u.ContentType, &u.UploadedAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, &u)
	}
	return uploads, rows.Err()
}
