package detection

import (
	"sort"

	"camwatch/internal/model"
)

// Params configures candidate filtering for a single target class.
type Params struct {
	TargetClassID       int
	ConfidenceThreshold float64
	NMSThreshold        float64
}

// Process turns raw model candidates into absolute, de-duplicated detections
// of the target class. An empty result is not an error.
func Process(candidates []model.RawCandidate, frameWidth, frameHeight int, p Params) []model.Detection {
	dets := make([]model.Detection, 0, len(candidates))
	for _, c := range candidates {
		classID, score, ok := argmax(c.Scores)
		if !ok || classID != p.TargetClassID {
			continue
		}
		// Confidence is always positive, even with a zero threshold.
		if score <= 0 || float64(score) < p.ConfidenceThreshold {
			continue
		}

		dets = append(dets, model.Detection{
			ClassID:    classID,
			Confidence: float64(score),
			Box:        toAbsolute(c, frameWidth, frameHeight),
		})
	}

	return NMS(dets, p.NMSThreshold)
}

// NMS runs greedy non-max suppression. Boxes are visited by descending
// confidence, ties keep input order, and any box whose IoU with a kept box
// exceeds threshold is dropped.
func NMS(dets []model.Detection, threshold float64) []model.Detection {
	if len(dets) == 0 {
		return []model.Detection{}
	}

	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dets[order[a]].Confidence > dets[order[b]].Confidence
	})

	suppressed := make([]bool, len(dets))
	kept := make([]model.Detection, 0, len(dets))
	for i, idx := range order {
		if suppressed[idx] {
			continue
		}
		kept = append(kept, dets[idx])
		for _, other := range order[i+1:] {
			if suppressed[other] {
				continue
			}
			if IoU(dets[idx].Box, dets[other].Box) > threshold {
				suppressed[other] = true
			}
		}
	}
	return kept
}

// IoU computes the Intersection-over-Union of two boxes.
func IoU(a, b model.Box) float64 {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)

	intersection := 0
	if x2 > x1 && y2 > y1 {
		intersection = (x2 - x1) * (y2 - y1)
	}
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func argmax(scores []float32) (int, float32, bool) {
	if len(scores) == 0 {
		return 0, 0, false
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best, scores[best], true
}

// toAbsolute converts a normalized center/size box into truncated pixel coordinates.
func toAbsolute(c model.RawCandidate, frameWidth, frameHeight int) model.Box {
	left := float32(c.CenterX - c.Width/2)
	top := float32(c.CenterY - c.Height/2)
	return model.Box{
		X:      int(left * float32(frameWidth)),
		Y:      int(top * float32(frameHeight)),
		Width:  int(c.Width * float32(frameWidth)),
		Height: int(c.Height * float32(frameHeight)),
	}
}
