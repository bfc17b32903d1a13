// Package limits holds the pure acceptance arithmetic used across the
// logbook: reading averages, NMT/NLT threshold checks, ISO 14644-1
// particle class limits, airflow derivations and instrument
// calibration windows. Everything here is stateless and NaN-safe.
package limits

import (
	"math"
	"time"
)

// Verdict is the outcome of an acceptance check.
type Verdict string

const (
	Pass Verdict = "PASS"
	Fail Verdict = "FAIL"
)

// Bound states which side of a limit is acceptable. NMT (not more
// than) passes at or below the limit; NLT (not less than) passes at
// or above it.
type Bound string

const (
	NMT Bound = "NMT"
	NLT Bound = "NLT"
)

// Average returns the arithmetic mean of values, skipping NaN and
// infinite entries. An empty or all-invalid slice averages to 0.
func Average(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Classify checks value against limit for the given bound. NaN on
// either side fails: an unknown reading never passes an acceptance
// criterion.
func Classify(value, limit float64, bound Bound) Verdict {
	if math.IsNaN(value) || math.IsNaN(limit) {
		return Fail
	}
	switch bound {
	case NMT:
		if value <= limit {
			return Pass
		}
	case NLT:
		if value >= limit {
			return Pass
		}
	}
	return Fail
}

// CheckNMT passes when value is at or below limit.
func CheckNMT(value, limit float64) Verdict {
	return Classify(value, limit, NMT)
}

// CheckNLT passes when value is at or above limit.
func CheckNLT(value, limit float64) Verdict {
	return Classify(value, limit, NLT)
}

// ClassLimits carries the ISO 14644-1 at-rest concentration limits
// per cubic metre for the two counted channels.
type ClassLimits struct {
	At05 float64 // particles ≥0.5µm
	At5  float64 // particles ≥5.0µm
}

var isoClassLimits = map[int]ClassLimits{
	5: {At05: 3_520, At5: 29},
	6: {At05: 35_200, At5: 293},
	7: {At05: 352_000, At5: 2_930},
	8: {At05: 3_520_000, At5: 29_300},
}

// ParticleLimits returns the ISO 14644-1 limits for classes 5 through
// 8. ok is false for any other class.
func ParticleLimits(isoClass int) (ClassLimits, bool) {
	l, ok := isoClassLimits[isoClass]
	return l, ok
}

// EvaluateRoomMeans checks a room's mean particle counts against its
// ISO class. Unknown classes fail.
func EvaluateRoomMeans(isoClass int, mean05, mean5 float64) Verdict {
	l, ok := ParticleLimits(isoClass)
	if !ok {
		return Fail
	}
	if CheckNMT(mean05, l.At05) == Fail {
		return Fail
	}
	return CheckNMT(mean5, l.At5)
}

// CheckDifferentialPressure passes when the measured pressure drop
// meets or exceeds the required limit.
func CheckDifferentialPressure(reading, limit float64) Verdict {
	return CheckNLT(reading, limit)
}

// AverageVelocity is the mean of anemometer grid readings in FPM.
func AverageVelocity(readings []float64) float64 {
	return Average(readings)
}

// AirflowCFM converts a filter's average face velocity (FPM) and area
// (sq ft) into volumetric flow.
func AirflowCFM(avgVelocityFPM, filterAreaSqFt float64) float64 {
	if math.IsNaN(avgVelocityFPM) || math.IsNaN(filterAreaSqFt) {
		return 0
	}
	return avgVelocityFPM * filterAreaSqFt
}

// ACH computes air changes per hour from total supply flow (CFM) and
// room volume (CFT). Zero or invalid volume yields 0 rather than an
// infinite rate.
func ACH(totalCFM, roomVolumeCFT float64) float64 {
	if roomVolumeCFT <= 0 || math.IsNaN(totalCFM) || math.IsNaN(roomVolumeCFT) {
		return 0
	}
	return totalCFM * 60 / roomVolumeCFT
}

// EvaluateRecovery passes when the measured recovery time is within
// the allowed minutes.
func EvaluateRecovery(recoveryTimeMin, limitMin float64) Verdict {
	return CheckNMT(recoveryTimeMin, limitMin)
}

// DownstreamLeakagePercent is the downstream concentration as a
// percentage of upstream. Zero upstream yields 0: no challenge, no
// measurable leak.
func DownstreamLeakagePercent(downstream, upstream float64) float64 {
	if upstream == 0 || math.IsNaN(downstream) || math.IsNaN(upstream) {
		return 0
	}
	return downstream / upstream * 100
}

// CheckFilterLeakage passes when the leakage percentage is at or
// below the acceptable limit.
func CheckFilterLeakage(leakagePercent, acceptableLimit float64) Verdict {
	return CheckNMT(leakagePercent, acceptableLimit)
}

// CalStatus is an instrument's calibration state relative to today.
type CalStatus string

const (
	CalValid    CalStatus = "valid"
	CalExpiring CalStatus = "expiring"
	CalExpired  CalStatus = "expired"
)

// ExpiryWindow is how far ahead of the due date an instrument is
// flagged as expiring.
const ExpiryWindow = 30 * 24 * time.Hour

// CalibrationStatus reports where due sits relative to now: past due
// is expired, within the expiry window is expiring, otherwise valid.
func CalibrationStatus(due, now time.Time) CalStatus {
	if due.Before(now) {
		return CalExpired
	}
	if due.Sub(now) <= ExpiryWindow {
		return CalExpiring
	}
	return CalValid
}
