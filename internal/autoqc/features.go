// Package autoqc computes per-sweep and per-cell QC features from a
// converted recording and evaluates them against a criteria document.
package autoqc

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/AllenInstitute/sweep-qc-tool/internal/dataset"
)

// Feature keys attached to sweep records.
const (
	FeatPreVmMV        = "pre_vm_mv"
	FeatPostVmMV       = "post_vm_mv"
	FeatVmDeltaMV      = "vm_delta_mv"
	FeatPreNoiseRMSMV  = "pre_noise_rms_mv"
	FeatPostNoiseRMSMV = "post_noise_rms_mv"
	FeatSlowNoiseRMSMV = "slow_noise_rms_mv"
	FeatLeakPA         = "leak_pa"
)

// TagEarlyTermination marks a sweep whose recording stopped before the
// stimulus protocol finished. Tagged sweeps are excluded from evaluation.
const TagEarlyTermination = "early termination"

// earlyTerminationFraction: a trailing all-zero run covering at least this
// share of the response means the amplifier stopped recording mid-sweep.
const earlyTerminationFraction = 0.25

// recordedExtent returns the number of samples before any trailing all-zero
// truncation, and whether the truncation is large enough to count as an
// early termination.
func recordedExtent(response []float64) (int, bool) {
	end := len(response)
	for end > 0 && response[end-1] == 0 {
		end--
	}
	trailing := len(response) - end
	early := len(response) > 0 && float64(trailing) >= earlyTerminationFraction*float64(len(response))
	return end, early
}

func windowLen(n int) int {
	w := n / 10
	if w < 1 {
		w = 1
	}
	return w
}

// rms is the root mean square of xs about its own mean.
func rms(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := stat.Mean(xs, nil)
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// sweepFeatures computes the current-clamp QC features for one trace.
// Response samples are volts, stimulus samples are amps.
func sweepFeatures(trace *dataset.Trace) (map[string]float64, []string) {
	var tags []string

	end, early := recordedExtent(trace.Response)
	if early {
		tags = append(tags, TagEarlyTermination)
	}
	resp := trace.Response[:end]
	if len(resp) == 0 {
		return map[string]float64{}, tags
	}

	w := windowLen(len(resp))
	pre := resp[:w]
	post := resp[len(resp)-w:]

	preVm := stat.Mean(pre, nil) * 1e3
	postVm := stat.Mean(post, nil) * 1e3

	feats := map[string]float64{
		FeatPreVmMV:        preVm,
		FeatPostVmMV:       postVm,
		FeatVmDeltaMV:      math.Abs(preVm - postVm),
		FeatPreNoiseRMSMV:  rms(pre) * 1e3,
		FeatPostNoiseRMSMV: rms(post) * 1e3,
		FeatSlowNoiseRMSMV: slowNoiseMV(resp),
	}

	if len(trace.Stimulus) >= w {
		feats[FeatLeakPA] = stat.Mean(trace.Stimulus[:w], nil) * 1e12
	}
	return feats, tags
}

// slowNoiseMV measures drift: the RMS of chunk means about the overall mean.
func slowNoiseMV(resp []float64) float64 {
	const chunks = 10
	if len(resp) < chunks {
		return 0
	}
	size := len(resp) / chunks
	means := make([]float64, 0, chunks)
	for i := 0; i+size <= len(resp); i += size {
		means = append(means, stat.Mean(resp[i:i+size], nil))
	}
	return rms(means) * 1e3
}

// blowoutMV is the steady pipette voltage after blowing out the tip,
// measured from an EXTPBLWOUT sweep.
func blowoutMV(trace *dataset.Trace) float64 {
	end, _ := recordedExtent(trace.Response)
	if end == 0 {
		return 0
	}
	return stat.Mean(trace.Response[:end], nil) * 1e3
}

// electrode0PA is the baseline pipette current in the bath, measured from an
// EXTPINBATH sweep.
func electrode0PA(trace *dataset.Trace) float64 {
	end, _ := recordedExtent(trace.Response)
	if end == 0 {
		return 0
	}
	return stat.Mean(trace.Response[:end], nil) * 1e12
}

var errFlatTestPulse = errors.New("test pulse has no current step")

// sealGOhm estimates seal resistance from a cell-attached voltage-clamp test
// pulse: the commanded voltage step divided by the evoked current step. The
// plateau is taken as the middle half of the sweep, the baseline as the
// leading tenth.
func sealGOhm(trace *dataset.Trace) (float64, error) {
	n := len(trace.Response)
	if n == 0 || len(trace.Stimulus) != n {
		return 0, errors.New("seal sweep has mismatched stimulus and response")
	}
	w := windowLen(n)
	vBase := stat.Mean(trace.Stimulus[:w], nil)
	iBase := stat.Mean(trace.Response[:w], nil)
	vStep := stat.Mean(trace.Stimulus[n/4:3*n/4], nil) - vBase
	iStep := stat.Mean(trace.Response[n/4:3*n/4], nil) - iBase
	if iStep == 0 {
		return 0, errFlatTestPulse
	}
	return vStep / iStep / 1e9, nil
}
