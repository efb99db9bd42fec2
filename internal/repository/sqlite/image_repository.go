package sqlite

import (
	"database/sql"
	"fmt"

	"camwatch/internal/model"
)

const imageColumns = `i.id, i.filename, i.camera, i.day, i.timestamp, i.variant, i.filepath, i.filesize`

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Insert adds an image record. A record already stored under the same file
// path is replaced together with its detections, mirroring the overwrite on disk.
func (r *ImageRepository) Insert(img *model.Image) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM detections WHERE image_id IN (SELECT id FROM images WHERE filepath = ?)`, img.FilePath); err != nil {
		return 0, fmt.Errorf("failed to delete previous detections: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM images WHERE filepath = ?`, img.FilePath); err != nil {
		return 0, fmt.Errorf("failed to delete previous image: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO images (filename, camera, day, timestamp, variant, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, img.Filename, img.Camera, img.Day, img.Timestamp, string(img.Variant), img.FilePath, img.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read image id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit image: %w", err)
	}
	return id, nil
}

// GetByFilePath retrieves an image by its path. It returns nil when absent.
func (r *ImageRepository) GetByFilePath(path string) (*model.Image, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+imageColumns+` FROM images i WHERE i.filepath = ?`, path)
	img, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return img, nil
}

// GetAll retrieves images based on filter criteria, newest first.
func (r *ImageRepository) GetAll(filter *model.ImageFilter) ([]model.Image, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildFilter(filter)
	query := `SELECT DISTINCT ` + imageColumns + `
		FROM images i
		LEFT JOIN detections d ON i.id = d.image_id
		WHERE 1=1` + where + `
		ORDER BY i.timestamp DESC, i.id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []model.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, *img)
	}

	return images, rows.Err()
}

// GetTotalCount returns the total count of images matching the filter.
func (r *ImageRepository) GetTotalCount(filter *model.ImageFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildFilter(filter)
	query := `
		SELECT COUNT(DISTINCT i.id)
		FROM images i
		LEFT JOIN detections d ON i.id = d.image_id
		WHERE 1=1` + where

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}

	return count, nil
}

// GetCameras returns a list of unique camera names.
func (r *ImageRepository) GetCameras() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT camera FROM images ORDER BY camera`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []string
	for rows.Next() {
		var camera string
		if err := rows.Scan(&camera); err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cameras = append(cameras, camera)
	}
	return cameras, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanImage(s scanner) (*model.Image, error) {
	var img model.Image
	var variant string
	if err := s.Scan(&img.ID, &img.Filename, &img.Camera, &img.Day, &img.Timestamp, &variant, &img.FilePath, &img.FileSize); err != nil {
		return nil, err
	}
	img.Variant = model.Variant(variant)
	return &img, nil
}

func buildFilter(filter *model.ImageFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	query := ""
	args := []interface{}{}

	if filter.Camera != "" {
		query += " AND i.camera = ?"
		args = append(args, filter.Camera)
	}

	if filter.Object != "" {
		query += " AND d.object_name = ?"
		args = append(args, filter.Object)
	}

	if filter.Day != "" {
		query += " AND i.day = ?"
		args = append(args, filter.Day)
	}

	if filter.DayFrom != "" {
		query += " AND i.day >= ?"
		args = append(args, filter.DayFrom)
	}

	if filter.DayTo != "" {
		query += " AND i.day <= ?"
		args = append(args, filter.DayTo)
	}

	if filter.Variant != "" {
		query += " AND i.variant = ?"
		args = append(args, string(filter.Variant))
	}

	return query, args
}
