package strava

import (
	"fmt"
	"math"
	"strings"
)

// SecToHHMM renders seconds as H:MM.
func SecToHHMM(sec int64) string {
	m := sec / 60
	return fmt.Sprintf("%d:%02d", m/60, m%60)
}

// PaceFromMoving renders pace in min/km, or "-" without distance or time.
func PaceFromMoving(distanceMeters float64, movingSec int64) string {
	if distanceMeters <= 0 || movingSec <= 0 {
		return "-"
	}
	secPerKm := int(float64(movingSec) / (distanceMeters / 1000.0))
	return fmt.Sprintf("%d:%02d", secPerKm/60, secPerKm%60)
}

func hr(v float64) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", int(math.Round(v)))
}

// FormatActivity renders an activity with its laps, falling back to metric
// splits when there are none.
func FormatActivity(a *Activity, laps []Lap) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) %s\n", a.Name, a.SportType, a.StartDateLocal)
	fmt.Fprintf(&b, "Distance: %.2f km\n", a.Distance/1000)
	fmt.Fprintf(&b, "Moving: %s\n", SecToHHMM(a.MovingTime))
	fmt.Fprintf(&b, "Pace: %s /km\n", PaceFromMoving(a.Distance, a.MovingTime))
	fmt.Fprintf(&b, "Avg HR: %s\n", hr(a.AverageHeartRate))
	fmt.Fprintf(&b, "Elevation: %+d m\n", int(math.Round(a.TotalElevationGain)))

	if len(laps) > 0 {
		b.WriteString("Lap | Time | Dist | Pace | Avg HR | Max HR\n")
		for _, lp := range laps {
			fmt.Fprintf(&b, "%d | %d:%02d | %.2f km | %s | %s | %s\n",
				lp.LapIndex,
				lp.MovingTime/60, lp.MovingTime%60,
				lp.Distance/1000,
				PaceFromMoving(lp.Distance, lp.MovingTime),
				hr(lp.AverageHeartrate), hr(lp.MaxHeartrate),
			)
		}
		return b.String()
	}

	if len(a.SplitsMetric) > 0 {
		b.WriteString("KM | Pace | Elevation\n")
		for _, sp := range a.SplitsMetric {
			fmt.Fprintf(&b, "%d | %s | %+d m\n",
				sp.Split,
				PaceFromMoving(sp.Distance, sp.MovingTime),
				int(math.Round(sp.ElevationDifference)),
			)
		}
	}
	return b.String()
}
