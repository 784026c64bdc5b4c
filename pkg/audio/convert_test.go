package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestRMS(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{name: "empty", samples: nil, want: 0},
		{name: "silence", samples: []float32{0, 0, 0, 0}, want: 0},
		{name: "full scale", samples: []float32{1, -1, 1, -1}, want: 1},
		{name: "half scale", samples: []float32{0.5, -0.5}, want: 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RMS(tt.samples)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeak(t *testing.T) {
	t.Parallel()
	got := Peak([]float32{0.1, -0.8, 0.3})
	if math.Abs(got-0.8) > 1e-6 {
		t.Errorf("Peak() = %v, want 0.8", got)
	}
	if Peak(nil) != 0 {
		t.Error("Peak(nil) should be 0")
	}
}

func TestFloat32PCM16RoundTrip(t *testing.T) {
	t.Parallel()
	in := []float32{0, 0.25, -0.25, 0.99, -0.99}
	out := PCM16ToFloat32(Float32ToPCM16(in))
	if len(out) != len(in) {
		t.Fatalf("got %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1.0/32767 {
			t.Errorf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestFloat32ToPCM16Clamps(t *testing.T) {
	t.Parallel()
	out := Float32ToPCM16([]float32{2.0, -2.0})
	if got := int16(binary.LittleEndian.Uint16(out[0:2])); got != 32767 {
		t.Errorf("positive overflow: got %d, want 32767", got)
	}
	if got := int16(binary.LittleEndian.Uint16(out[2:4])); got != -32767 {
		t.Errorf("negative overflow: got %d, want -32767", got)
	}
}

func TestEncodeWAV(t *testing.T) {
	t.Parallel()
	samples := make([]float32, 160)
	data := EncodeWAV(samples, 16000)

	if got := string(data[0:4]); got != "RIFF" {
		t.Errorf("header = %q, want RIFF", got)
	}
	if got := string(data[8:12]); got != "WAVE" {
		t.Errorf("format = %q, want WAVE", got)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(len(samples)*2) {
		t.Errorf("data size = %d, want %d", got, len(samples)*2)
	}
	if len(data) != 44+len(samples)*2 {
		t.Errorf("total size = %d, want %d", len(data), 44+len(samples)*2)
	}
}

func TestDownmixToMono(t *testing.T) {
	t.Parallel()
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	mono := DownmixToMono(stereo, 2)
	want := []float32{0.5, 0.5, 0}
	if len(mono) != len(want) {
		t.Fatalf("got %d frames, want %d", len(mono), len(want))
	}
	for i := range want {
		if math.Abs(float64(mono[i]-want[i])) > 1e-6 {
			t.Errorf("frame %d: got %v, want %v", i, mono[i], want[i])
		}
	}
}
