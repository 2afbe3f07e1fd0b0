package codec

// DegreesMinutes converts a packed DDDMMmmmm value (degrees times 1e6 plus
// minutes times 1e4) to decimal degrees.
func DegreesMinutes(raw int) float64 {
	degrees := raw / 1000000
	minutes := float64(raw%1000000) / 10000.0
	return float64(degrees) + minutes/60
}

// Scaled converts a signed micro-degree value to decimal degrees.
func Scaled[T ~int16 | ~int32 | ~int64 | ~int](raw T) float64 {
	return float64(raw) / 1000000.0
}
