package scoring

import "strings"

// Default fantasy points per event type, used when the upstream event does
// not carry an explicit delta.
var defaultPoints = map[string]float64{
	"goal":       3,
	"assist":     2,
	"shot":       0.5,
	"hit":        0.5,
	"block":      0.5,
	"pim":        0.25,
	"plus_minus": 0.5,
}

// PointsFor resolves an event type to its default point value. Feed event
// names vary ("goal", "GOAL", "shot-on-goal"), so unknown types fall back to
// substring matching before giving up with 0.
func PointsFor(eventType string) float64 {
	t := strings.ToLower(eventType)
	if pts, ok := defaultPoints[t]; ok {
		return pts
	}
	switch {
	case strings.Contains(t, "goal") && !strings.Contains(t, "shot"):
		return defaultPoints["goal"]
	case strings.Contains(t, "assist"):
		return defaultPoints["assist"]
	case strings.Contains(t, "shot"):
		return defaultPoints["shot"]
	case strings.Contains(t, "hit"):
		return defaultPoints["hit"]
	case strings.Contains(t, "block"):
		return defaultPoints["block"]
	case strings.Contains(t, "penalty"):
		return defaultPoints["pim"]
	default:
		return 0
	}
}
