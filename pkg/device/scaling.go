package device

// ScalePosition maps a device position value into a 0-100 percentage.
// Covers that report 0 as fully open set inverted.
func ScalePosition(value int32, inverted bool) int {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	if inverted {
		return int(100 - value)
	}
	return int(value)
}

// UnscalePosition maps a 0-100 percentage back to the device value.
func UnscalePosition(percent int, inverted bool) int32 {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if inverted {
		return int32(100 - percent)
	}
	return int32(percent)
}
