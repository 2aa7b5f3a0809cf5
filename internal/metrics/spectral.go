package metrics

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultSampleRate is the stream rate, in Hz, assumed for spectral metrics
// when none is configured.
const DefaultSampleRate = 40.0

// defaultSegment is the Welch segment length used for long signals.
const defaultSegment = 256

// WelchPSD estimates the one-sided power spectral density of x sampled at fs
// Hz. Segments of up to 256 samples overlap by half, are detrended by their
// mean and weighted by a periodic Hann window; the density is the mean of the
// segment periodograms. It returns the frequency of each bin and its density.
func WelchPSD(x []float64, fs float64) (freqs, psd []float64) {
	if len(x) == 0 || fs <= 0 {
		return nil, nil
	}
	nseg := min(defaultSegment, len(x))
	step := nseg - nseg/2

	window := make([]float64, nseg)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(nseg))
	}
	scale := 1 / (fs * floats.Dot(window, window))
	if nseg == 1 {
		// A one-sample Hann window is all zeros; use a rectangular one.
		window[0] = 1
		scale = 1 / fs
	}

	fft := fourier.NewFFT(nseg)
	bins := nseg/2 + 1
	psd = make([]float64, bins)
	seg := make([]float64, nseg)
	coeff := make([]complex128, bins)
	count := 0
	for start := 0; start+nseg <= len(x); start += step {
		mean := stat.Mean(x[start:start+nseg], nil)
		for i := range seg {
			seg[i] = (x[start+i] - mean) * window[i]
		}
		coeff = fft.Coefficients(coeff, seg)
		for i, c := range coeff {
			a := cmplx.Abs(c)
			psd[i] += a * a
		}
		count++
	}

	floats.Scale(scale/float64(count), psd)
	// Fold the negative frequencies onto the positive ones. The DC bin and,
	// for even lengths, the Nyquist bin have no mirror.
	last := bins
	if nseg%2 == 0 {
		last = bins - 1
	}
	for i := 1; i < last; i++ {
		psd[i] *= 2
	}

	freqs = make([]float64, bins)
	for i := range freqs {
		freqs[i] = fft.Freq(i) * fs
	}
	return freqs, psd
}

// KLDivergence returns Σ p·log(p/q) after normalising both inputs to sum to
// one. It reports false when the divergence is undefined or infinite, which
// happens when q has zero mass where p does not.
func KLDivergence(p, q []float64) (float64, bool) {
	if len(p) == 0 || len(p) != len(q) {
		return 0, false
	}
	sp, sq := floats.Sum(p), floats.Sum(q)
	if sp <= 0 || sq <= 0 {
		return 0, false
	}
	pn := make([]float64, len(p))
	qn := make([]float64, len(q))
	floats.ScaleTo(pn, 1/sp, p)
	floats.ScaleTo(qn, 1/sq, q)
	kl := stat.KullbackLeibler(pn, qn)
	if math.IsNaN(kl) || math.IsInf(kl, 0) {
		return 0, false
	}
	return kl, true
}

// SpectralKLD is the divergence between the Welch power spectra of x and y.
// The signals may differ in length as long as both produce spectra of the
// same resolution.
func SpectralKLD(x, y []float64, fs float64) (float64, bool) {
	_, px := WelchPSD(x, fs)
	_, py := WelchPSD(y, fs)
	return KLDivergence(px, py)
}
