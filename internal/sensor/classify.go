package sensor

// WarningRatio is the fraction of the threshold span at which a channel
// starts reporting a warning.
const WarningRatio = 0.5

// BarometerBaseline is the pressure floor the barometer gauge is measured from.
const BarometerBaseline = 1000.0

// Baseline returns the value at which the kind's severity gauge reads zero.
func Baseline(kind Kind) float64 {
	if kind == Barometer {
		return BarometerBaseline
	}
	return 0
}

// Classify derives the severity of a reading. A value equal to the threshold
// is critical. Battery is inverted: it becomes critical at or below the
// threshold and warns at or below threshold/WarningRatio. GPS is always normal.
func Classify(kind Kind, value, threshold float64) Status {
	switch {
	case !kind.Numeric():
		return StatusNormal
	case kind.Inverted():
		if value <= threshold {
			return StatusCritical
		}
		if value <= threshold/WarningRatio {
			return StatusWarning
		}
		return StatusNormal
	}
	if value >= threshold {
		return StatusCritical
	}
	base := Baseline(kind)
	if value-base >= WarningRatio*(threshold-base) {
		return StatusWarning
	}
	return StatusNormal
}

// NextValue returns the reading after one tick. u is a draw in [0,1) that
// picks the step inside [StepMin, StepMax]. Non-inverted channels rise,
// battery falls; the result is clamped to [0, Max].
func NextValue(spec Spec, prev, u float64) float64 {
	if !spec.Kind.Numeric() {
		return prev
	}
	if u < 0 {
		u = 0
	} else if u >= 1 {
		u = 0.999999
	}
	step := spec.StepMin + u*(spec.StepMax-spec.StepMin)
	next := prev + step
	if spec.Kind.Inverted() {
		next = prev - step
	}
	if next < 0 {
		next = 0
	}
	if spec.Max > 0 && next > spec.Max {
		next = spec.Max
	}
	return next
}
