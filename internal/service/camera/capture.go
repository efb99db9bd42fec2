package camera

import (
	"gocv.io/x/gocv"
)

// captureDevice adapts gocv.VideoCapture to Device.
type captureDevice struct {
	cap *gocv.VideoCapture
}

// OpenCapture opens url with OpenCV. Numeric urls select a local device index.
// A handle allocated by a failed open is released before returning.
func OpenCapture(url string) (Device, error) {
	cap, err := gocv.OpenVideoCapture(url)
	if err != nil {
		if cap != nil {
			cap.Close()
		}
		return nil, err
	}
	return &captureDevice{cap: cap}, nil
}

func (d *captureDevice) IsOpened() bool {
	return d.cap.IsOpened()
}

func (d *captureDevice) Read(frame *gocv.Mat) bool {
	return d.cap.Read(frame)
}

func (d *captureDevice) Set(prop gocv.VideoCaptureProperties, value float64) {
	d.cap.Set(prop, value)
}

func (d *captureDevice) Get(prop gocv.VideoCaptureProperties) float64 {
	return d.cap.Get(prop)
}

func (d *captureDevice) Close() error {
	return d.cap.Close()
}
