package model

// CameraSpec describes one configured camera. It is immutable after startup.
type CameraSpec struct {
	Name   string
	URL    string
	FPS    int
	Width  int
	Height int
}
