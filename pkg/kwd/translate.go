package kwd

// TranslateIndices projects the device-reported keyword start onto the host
// stream timeline.
//
// The device and the host sample the same audio on independent clocks, so
// their absolute counters differ. At the instant of a trigger the distance
// between the device's current counter and its keyword-begin counter is the
// same number of samples on both sides; subtracting that delta from the host
// cursor sampled at the same instant yields the host-side keyword start. Both
// sides free-run, so this holds only for the short window around the trigger.
//
// The returned begin never exceeds end, and end is always the host cursor.
func TranslateIndices(hostCurrent uint64, dev DeviceIndices) (begin, end uint64) {
	if dev.Begin > dev.Current {
		// Malformed report; the keyword cannot start in the device's future.
		return hostCurrent, hostCurrent
	}
	delta := dev.Current - dev.Begin
	if delta > hostCurrent {
		// Keyword started before the host stream existed; clamp to origin.
		return 0, hostCurrent
	}
	return hostCurrent - delta, hostCurrent
}
