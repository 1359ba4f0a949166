// Package freqmeter measures the frequency of a digital signal from its
// transition times, as captured by a logic analyzer.
package freqmeter

import (
	"errors"
	"fmt"

	"github.com/soypat/saleae"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrTooFewEdges    = errors.New("freqmeter: need at least two rising edges")
	ErrOutOfTolerance = errors.New("freqmeter: frequency out of tolerance")
)

// Measurement holds rising-edge to rising-edge statistics of a signal.
type Measurement struct {
	// Rising edges found in the capture.
	Edges int
	// Periods between consecutive rising edges in seconds.
	Periods []float64
	// Frequency is the inverse of the mean period in Hz.
	Frequency float64
	// Duty is the mean fraction of each period the signal is high.
	Duty float64
	// PeriodStdDev is the sample standard deviation of Periods in seconds.
	PeriodStdDev float64
	// Jitter is the peak-to-peak period deviation in seconds.
	Jitter float64
}

// Measure computes Measurement for a signal starting at level initial that
// toggles at each of the ascending transition times.
func Measure(initial bool, transitions []float64) (m Measurement, err error) {
	var rising []int // Indices into transitions.
	for i := 1; i < len(transitions); i++ {
		if transitions[i] <= transitions[i-1] {
			return m, fmt.Errorf("freqmeter: transitions not ascending at %d", i)
		}
	}
	for i := range transitions {
		// Level after transition i is initial XOR (i is even).
		high := initial != (i%2 == 0)
		if high {
			rising = append(rising, i)
		}
	}
	if len(rising) < 2 {
		return m, ErrTooFewEdges
	}
	m.Edges = len(rising)
	m.Periods = make([]float64, len(rising)-1)
	var dutySum float64
	for j := range m.Periods {
		start, next := rising[j], rising[j+1]
		period := transitions[next] - transitions[start]
		m.Periods[j] = period
		// The falling edge always follows its rising edge directly.
		dutySum += (transitions[start+1] - transitions[start]) / period
	}
	mean := stat.Mean(m.Periods, nil)
	m.Frequency = 1 / mean
	m.Duty = dutySum / float64(len(m.Periods))
	if len(m.Periods) > 1 {
		m.PeriodStdDev = stat.StdDev(m.Periods, nil)
	}
	m.Jitter = floats.Max(m.Periods) - floats.Min(m.Periods)
	return m, nil
}

// FromDigitalFile measures a Saleae digital channel capture.
func FromDigitalFile(df *saleae.DigitalFile) (Measurement, error) {
	return Measure(df.Header.InitialState != 0, df.Data)
}

// PPM returns the deviation of got from want in parts per million.
func PPM(got, want float64) float64 {
	return (got - want) / want * 1e6
}

// Check returns the measured deviation from want in ppm and an error
// wrapping ErrOutOfTolerance when it exceeds tolPPM.
func Check(m Measurement, want, tolPPM float64) (ppm float64, err error) {
	ppm = PPM(m.Frequency, want)
	if abs(ppm) > tolPPM {
		err = fmt.Errorf("%w: %.3fHz is %+.1fppm from %.3fHz (tolerance %.1fppm)", ErrOutOfTolerance, m.Frequency, ppm, want, tolPPM)
	}
	return ppm, err
}

func abs[T constraints.Signed | constraints.Float](x T) T {
	if x < 0 {
		return -x
	}
	return x
}
