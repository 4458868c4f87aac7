package strip

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pforret/stemmogram/internal/config"
	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Mel spectrograms are computed in-process rather than delegated to the
// external renderer: the signal is framed with a fixed hop, Hann-windowed,
// transformed with a real FFT, and the power spectrum is folded through an
// HTK mel filter bank before log compression and rasterization.

// melRenderer holds the precomputed FFT plan and filter bank for one
// sample rate.
type melRenderer struct {
	fft        *fourier.FFT
	window     []float64
	filterBank [][]float64 // [band][bin] weights
	sampleRate int
}

func newMelRenderer(sampleRate int) *melRenderer {
	return &melRenderer{
		fft:        fourier.NewFFT(config.MelFrameSize),
		window:     hannWindow(config.MelFrameSize),
		filterBank: melFilterBank(config.MelBands, config.MelFrameSize, sampleRate, config.MelFmin, config.MelFmax),
		sampleRate: sampleRate,
	}
}

// RenderMel computes the mel spectrogram strip for a separated stem WAV and
// returns it resized to the requested dimensions.
func RenderMel(wavPath string, scale config.Scale, width, height int) (*image.Gray, error) {
	samples, sampleRate, err := readWAVMono(wavPath)
	if err != nil {
		return nil, err
	}
	if len(samples) < config.MelFrameSize {
		return nil, fmt.Errorf("audio too short for mel analysis: %d samples", len(samples))
	}

	r := newMelRenderer(sampleRate)
	bands := r.analyze(samples)
	raw := rasterize(bands, scale)
	return resizeGray(raw, width, height), nil
}

// analyze returns one mel-band column per hop: [frame][band] log power.
func (r *melRenderer) analyze(samples []float64) [][]float64 {
	numFrames := 1 + (len(samples)-config.MelFrameSize)/config.MelHopSize
	frames := make([][]float64, numFrames)

	windowed := make([]float64, config.MelFrameSize)
	power := make([]float64, config.MelFrameSize/2+1)

	for f := 0; f < numFrames; f++ {
		offset := f * config.MelHopSize
		for i := 0; i < config.MelFrameSize; i++ {
			windowed[i] = samples[offset+i] * r.window[i]
		}

		coeffs := r.fft.Coefficients(nil, windowed)
		for i := range power {
			re, im := real(coeffs[i]), imag(coeffs[i])
			power[i] = re*re + im*im
		}

		bands := make([]float64, config.MelBands)
		for b, filter := range r.filterBank {
			var sum float64
			for bin, w := range filter {
				if w > 0 {
					sum += power[bin] * w
				}
			}
			// Always log power before the display-scale transform.
			if sum < 1e-10 {
				sum = 1e-10
			}
			bands[b] = math.Log10(sum)
		}
		frames[f] = bands
	}
	return frames
}

// rasterize min/max-normalizes the log-power surface, applies the display
// scale and maps to an 8-bit grayscale raster with low bands at the bottom.
func rasterize(frames [][]float64, scale config.Scale) *image.Gray {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, frame := range frames {
		for _, v := range frame {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	img := image.NewGray(image.Rect(0, 0, len(frames), config.MelBands))
	for x, frame := range frames {
		for b, v := range frame {
			norm := ApplyScale(scale, (v-lo)/span)
			y := config.MelBands - 1 - b
			img.SetGray(x, y, grayLevel(norm))
		}
	}
	return img
}

// hannWindow builds a Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

const (
	melBreakFrequency = 700.0
	melHighFrequencyQ = 1127.0
)

func hzToMel(hz float64) float64 {
	return melHighFrequencyQ * math.Log(1.0+hz/melBreakFrequency)
}

func melToHz(mel float64) float64 {
	return melBreakFrequency * (math.Exp(mel/melHighFrequencyQ) - 1.0)
}

// melFilterBank builds numBands triangular filters over the positive-
// frequency bins of a frameSize FFT, spaced linearly on the mel scale
// between fmin and fmax.
func melFilterBank(numBands, frameSize, sampleRate int, fmin, fmax float64) [][]float64 {
	nyquist := float64(sampleRate) / 2
	if fmax > nyquist {
		fmax = nyquist
	}

	numBins := frameSize/2 + 1
	melLo, melHi := hzToMel(fmin), hzToMel(fmax)

	// Band edge frequencies: numBands+2 points spanning the mel range.
	edges := make([]float64, numBands+2)
	for i := range edges {
		mel := melLo + (melHi-melLo)*float64(i)/float64(numBands+1)
		edges[i] = melToHz(mel)
	}

	binHz := float64(sampleRate) / float64(frameSize)
	bank := make([][]float64, numBands)
	for b := 0; b < numBands; b++ {
		left, center, right := edges[b], edges[b+1], edges[b+2]
		filter := make([]float64, numBins)
		for bin := 0; bin < numBins; bin++ {
			hz := float64(bin) * binHz
			switch {
			case hz <= left || hz >= right:
				// outside the triangle
			case hz <= center:
				filter[bin] = (hz - left) / (center - left)
			default:
				filter[bin] = (right - hz) / (right - center)
			}
		}
		bank[b] = filter
	}
	return bank
}

// readWAVMono loads a WAV file and downmixes it to mono float64 samples.
func readWAVMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV file: %s", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read PCM data: %w", err)
	}

	maxVal := float64(audio.IntMaxSignedValue(int(decoder.BitDepth)))
	numChans := buf.Format.NumChannels
	if numChans < 1 {
		numChans = 1
	}

	numFrames := len(buf.Data) / numChans
	samples := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		var sum float64
		for ch := 0; ch < numChans; ch++ {
			sum += float64(buf.Data[i*numChans+ch]) / maxVal
		}
		samples[i] = sum / float64(numChans)
	}
	return samples, int(decoder.SampleRate), nil
}

// resizeGray scales an image to the exact target dimensions with bilinear
// interpolation.
func resizeGray(src *image.Gray, width, height int) *image.Gray {
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func grayLevel(norm float64) color.Gray {
	v := int(norm*255 + 0.5)
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return color.Gray{Y: uint8(v)}
}
