package arrivals

import "github.com/yegors/arrival-board/internal/jsonutil"

const metersPerMile = 1609.344

// IntExtractor reads one candidate value; ok is false when absent
type IntExtractor func() (int, bool)

// FloatExtractor is the float twin of IntExtractor
type FloatExtractor func() (float64, bool)

// FirstPresentInt returns the first value produced by the extractors in order
func FirstPresentInt(extractors ...IntExtractor) (int, bool) {
	for _, ex := range extractors {
		if v, ok := ex(); ok {
			return v, true
		}
	}
	return 0, false
}

// FirstPresentFloat returns the first value produced by the extractors in order
func FirstPresentFloat(extractors ...FloatExtractor) (float64, bool) {
	for _, ex := range extractors {
		if v, ok := ex(); ok {
			return v, true
		}
	}
	return 0, false
}

// nonNegativeInt reads the number at path under root, treating negatives as absent
func nonNegativeInt(root jsonutil.Value, path ...string) IntExtractor {
	return func() (int, bool) {
		v := jsonutil.Int(jsonutil.Path(root, path...), Unknown)
		return v, v >= 0
	}
}

func nonNegativeFloat(root jsonutil.Value, path ...string) FloatExtractor {
	return func() (float64, bool) {
		v := jsonutil.Float(jsonutil.Path(root, path...), UnknownMiles)
		return v, v >= 0
	}
}

// MetersToMiles converts a distance in meters. Negative input is treated as
// unknown and yields UnknownMiles rather than 0.
func MetersToMiles(meters float64) float64 {
	if meters < 0 {
		return UnknownMiles
	}
	return meters / metersPerMile
}
