package app

import (
	"fmt"

	"gocv.io/x/gocv"
)

// matFrame encodes a Mat to disk with the codec chosen by the file extension.
type matFrame struct {
	mat gocv.Mat
}

func (f matFrame) Encode(path string) error {
	if f.mat.Empty() {
		return fmt.Errorf("cannot encode empty frame to %s", path)
	}
	if !gocv.IMWrite(path, f.mat) {
		return fmt.Errorf("image encoder rejected %s", path)
	}
	return nil
}
