package store

import (
	"context"

	"github.com/tidechat/server/internal/v1/errs"
)

// FileLink is a shared-file entry surfaced on the admin page: a download link
// and the QR image pointing at it.
type FileLink struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Link   string `json:"link"`
	QRLink string `json:"qrlink"`
}

// InsertFileLink records a newly shared file.
func (s *Store) InsertFileLink(ctx context.Context, name, link, qrLink string) (FileLink, error) {
	var fl FileLink
	row := s.DB.QueryRowContext(ctx,
		"INSERT INTO filelinks (name, link, qrlink) VALUES ($1, $2, $3) RETURNING id, name, link, qrlink",
		name, link, qrLink)
	if err := row.Scan(&fl.ID, &fl.Name, &fl.Link, &fl.QRLink); err != nil {
		return FileLink{}, wrapDBErr(err)
	}
	return fl, nil
}

// ListFileLinks returns every shared-file entry, newest first.
func (s *Store) ListFileLinks(ctx context.Context) ([]FileLink, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, name, link, qrlink FROM filelinks ORDER BY id DESC")
	if err != nil {
		return nil, wrapDBErr(err)
	}
	defer rows.Close()

	links := []FileLink{}
	for rows.Next() {
		var fl FileLink
		if err := rows.Scan(&fl.ID, &fl.Name, &fl.Link, &fl.QRLink); err != nil {
			return nil, wrapDBErr(err)
		}
		links = append(links, fl)
	}
	return links, wrapDBErr(rows.Err())
}

// DeleteFileLink removes one entry by id.
func (s *Store) DeleteFileLink(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM filelinks WHERE id = $1", id)
	if err != nil {
		return wrapDBErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
