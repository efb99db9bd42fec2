package model

import "time"

// Image represents an indexed evidence file.
type Image struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Camera    string    `json:"camera"`
	Day       string    `json:"day"`
	Timestamp time.Time `json:"timestamp"`
	Variant   Variant   `json:"variant"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}

// ImageFilter contains filtering options for querying indexed images.
type ImageFilter struct {
	Camera  string
	Object  string
	Day     string
	DayFrom string
	DayTo   string
	Variant Variant
	Limit   int
	Offset  int
}

// IndexedDetection is a detection row stored against an indexed image.
type IndexedDetection struct {
	ID         int64   `json:"id"`
	ImageID    int64   `json:"image_id"`
	ObjectName string  `json:"object_name"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}
