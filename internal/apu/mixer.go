package apu

// Mix combines raw channel levels with the console's nonlinear DAC
// approximation. Pulse, triangle and noise are 0-15, DMC is 0-127. The
// result is in [0, 1].
func Mix(pulse1, pulse2, triangle, noise, dmc uint8) float32 {
	var pulseOut, tndOut float64
	if p := float64(pulse1) + float64(pulse2); p > 0 {
		pulseOut = 95.88 / (8128/p + 100)
	}
	tnd := float64(triangle)/8227 + float64(noise)/12241 + float64(dmc)/22638
	if tnd > 0 {
		tndOut = 159.79 / (1/tnd + 100)
	}
	return float32(pulseOut + tndOut)
}
