package freqmeter

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/soypat/saleae"
)

// square returns the transitions of an ideal square wave of frequency hz
// lasting n periods, starting low.
func square(hz float64, n int) []float64 {
	half := 1 / (2 * hz)
	t := make([]float64, 2*n)
	for i := range t {
		t[i] = float64(i+1) * half
	}
	return t
}

func TestMeasureSquare(t *testing.T) {
	var tests = []struct {
		hz      float64
		initial bool
	}{
		{hz: 512},
		{hz: 32768},
		{hz: 512, initial: true},
	}
	for _, tt := range tests {
		m, err := Measure(tt.initial, square(tt.hz, 64))
		if err != nil {
			t.Fatal(err)
		}
		if m.Frequency != tt.hz {
			t.Errorf("got %vHz, want %vHz", m.Frequency, tt.hz)
		}
		if math.Abs(m.Duty-0.5) > 1e-9 {
			t.Errorf("got duty %v, want 0.5", m.Duty)
		}
		if m.Jitter != 0 || m.PeriodStdDev != 0 {
			t.Errorf("ideal wave has jitter=%v stddev=%v", m.Jitter, m.PeriodStdDev)
		}
		if m.Edges != 64 {
			t.Errorf("got %d edges, want 64", m.Edges)
		}
	}
}

func TestMeasureJitter(t *testing.T) {
	// Rising at 0, 1, 3, 4. Falling half way through.
	transitions := []float64{0, 0.5, 1, 2, 3, 3.5, 4, 4.5}
	m, err := Measure(false, transitions)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Periods) != 3 {
		t.Fatalf("got %d periods", len(m.Periods))
	}
	if m.Jitter != 1 {
		t.Errorf("got jitter %v, want 1", m.Jitter)
	}
	if math.Abs(m.Frequency-0.75) > 1e-12 {
		t.Errorf("got %vHz, want 0.75Hz", m.Frequency)
	}
	if m.PeriodStdDev == 0 {
		t.Error("expected nonzero period deviation")
	}
}

func TestMeasureErrors(t *testing.T) {
	_, err := Measure(false, []float64{1, 2})
	if !errors.Is(err, ErrTooFewEdges) {
		t.Errorf("got %v, want ErrTooFewEdges", err)
	}
	_, err = Measure(false, nil)
	if !errors.Is(err, ErrTooFewEdges) {
		t.Errorf("got %v, want ErrTooFewEdges", err)
	}
	_, err = Measure(false, []float64{2, 2.5, 1, 1.5})
	if err == nil {
		t.Error("expected error on descending transitions")
	}
	// Rising edges ascend but the first falling edge is out of order.
	m, err := Measure(false, []float64{0, 5, 1, 1.5, 2, 2.5})
	if err == nil {
		t.Errorf("expected error on out of order falling edge, got duty=%v", m.Duty)
	}
	_, err = Measure(false, []float64{0, 0.5, 0.5, 1.5})
	if err == nil {
		t.Error("expected error on repeated transition time")
	}
}

func TestFromDigitalFile(t *testing.T) {
	for _, initial := range []uint32{0, 1} {
		data := square(512, 32)
		df := saleae.DigitalFile{
			Header: saleae.DigitalHeader{
				Info:           saleae.FileHeader{Type: saleae.FileTypeDigital},
				InitialState:   initial,
				End:            data[len(data)-1] + 1e-3,
				NumTransitions: uint64(len(data)),
			},
			Data: data,
		}
		var buf bytes.Buffer
		_, err := df.WriteTo(&buf)
		if err != nil {
			t.Fatal(err)
		}
		got, err := saleae.ReadDigitalFile(&buf)
		if err != nil {
			t.Fatal(err)
		}
		m, err := FromDigitalFile(got)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(m.Frequency-512) > 1e-6 {
			t.Errorf("initial=%d: got %vHz, want 512Hz", initial, m.Frequency)
		}
		if m.Edges != 32 {
			t.Errorf("initial=%d: got %d rising edges, want 32", initial, m.Edges)
		}
	}
}

func TestCheck(t *testing.T) {
	m := Measurement{Frequency: 32768 * (1 + 100e-6)}
	ppm, err := Check(m, 32768, 200)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(ppm-100) > 1e-6 {
		t.Errorf("got %vppm, want 100ppm", ppm)
	}
	_, err = Check(m, 32768, 50)
	if !errors.Is(err, ErrOutOfTolerance) {
		t.Errorf("got %v, want ErrOutOfTolerance", err)
	}
	m.Frequency = 32768 * (1 - 100e-6)
	_, err = Check(m, 32768, 50)
	if !errors.Is(err, ErrOutOfTolerance) {
		t.Errorf("negative deviation: got %v, want ErrOutOfTolerance", err)
	}
}
