package facematch

// ScaleBBox divides a pixel bbox [x1, y1, x2, y2] by factor. It maps boxes
// detected on an upscaled image back to the original image.
func ScaleBBox(bbox []float64, factor float64) []float64 {
	if len(bbox) != 4 || factor <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] / factor,
		bbox[1] / factor,
		bbox[2] / factor,
		bbox[3] / factor,
	}
}

// ClampBBox limits a pixel bbox to the image bounds [0, width) x [0, height).
func ClampBBox(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	clamp := func(v float64, hi int) float64 {
		return max(0, min(v, float64(hi-1)))
	}
	return []float64{
		clamp(bbox[0], width),
		clamp(bbox[1], height),
		clamp(bbox[2], width),
		clamp(bbox[3], height),
	}
}

// ConvertPixelBBoxToRelative converts pixel bbox to relative (0-1) coordinates.
// Input bbox is [x1, y1, x2, y2] in pixels, output is [x1, y1, x2, y2] in relative coords.
func ConvertPixelBBoxToRelative(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] / float64(width),
		bbox[1] / float64(height),
		bbox[2] / float64(width),
		bbox[3] / float64(height),
	}
}
