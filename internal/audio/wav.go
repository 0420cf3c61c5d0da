// Package audio holds the small amount of PCM/WAV handling the server needs:
// wrapping raw microphone frames for the speech runtime, measuring energy for
// silence detection, and joining synthesized segments.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// ContentTypeWAV is the media type of everything Encode produces.
const ContentTypeWAV = "audio/wav"

var (
	ErrNotWAV            = errors.New("not a RIFF/WAVE file")
	ErrUnsupportedFormat = errors.New("only 16-bit PCM WAV is supported")
)

// Clip is 16-bit little-endian PCM audio.
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []int16 // interleaved when Channels > 1
}

// Duration is the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Mono returns the clip downmixed to one channel.
func (c *Clip) Mono() *Clip {
	if c.Channels <= 1 {
		return c
	}
	frames := len(c.Samples) / c.Channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < c.Channels; ch++ {
			sum += int(c.Samples[i*c.Channels+ch])
		}
		out[i] = int16(sum / c.Channels)
	}
	return &Clip{SampleRate: c.SampleRate, Channels: 1, Samples: out}
}

// Encode renders the clip as a canonical 44-byte-header WAV file.
func (c *Clip) Encode() []byte {
	dataLen := len(c.Samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataLen))

	blockAlign := c.Channels * 2
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(c.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(c.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(c.SampleRate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	binary.Write(buf, binary.LittleEndian, c.Samples)
	return buf.Bytes()
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// Decode parses a 16-bit PCM WAV file, skipping chunks it does not need.
func Decode(data []byte) (*Clip, error) {
	if !IsWAV(data) {
		return nil, ErrNotWAV
	}

	var (
		clip     Clip
		haveFmt  bool
		haveData bool
	)
	pos := 12
	for pos+8 <= len(data) && !haveData {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// Streaming writers leave the size unset; take what is there.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", end-body)
			}
			format := binary.LittleEndian.Uint16(data[body:])
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if (format != 1 && format != 0xFFFE) || bits != 16 {
				return nil, ErrUnsupportedFormat
			}
			clip.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, errors.New("data chunk before fmt chunk")
			}
			clip.Samples = PCM16(data[body:end])
			haveData = true
		}

		pos = end + size%2
	}

	if !haveFmt || !haveData {
		return nil, errors.New("missing fmt or data chunk")
	}
	if clip.Channels <= 0 || clip.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid format: %d channels at %d Hz", clip.Channels, clip.SampleRate)
	}
	return &clip, nil
}

// Duration returns the length of a WAV file without keeping its samples.
func Duration(data []byte) (time.Duration, error) {
	clip, err := Decode(data)
	if err != nil {
		return 0, err
	}
	return clip.Duration(), nil
}

// PCM16 converts little-endian bytes to samples; a trailing odd byte is dropped.
func PCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// Resample converts mono samples between rates by linear interpolation.
func Resample(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n <= 1 {
		return []int16{samples[0]}
	}
	out := make([]int16, n)
	step := float64(len(samples)-1) / float64(n-1)
	for i := range out {
		x := float64(i) * step
		j := int(x)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := x - float64(j)
		v := float64(samples[j])*(1-frac) + float64(samples[j+1])*frac
		out[i] = int16(math.Round(v))
	}
	return out
}

// Concat joins WAV files into one mono clip at sampleRate, inserting pause
// between consecutive parts and normalizing the peak to peak (0..1, 0 skips).
func Concat(parts [][]byte, sampleRate int, pause time.Duration, peak float64) ([]byte, error) {
	if len(parts) == 0 {
		return nil, errors.New("nothing to concatenate")
	}
	gap := make([]int16, int(pause.Seconds()*float64(sampleRate)))

	var joined []int16
	for i, part := range parts {
		clip, err := Decode(part)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		mono := clip.Mono()
		if i > 0 {
			joined = append(joined, gap...)
		}
		joined = append(joined, Resample(mono.Samples, mono.SampleRate, sampleRate)...)
	}

	if peak > 0 {
		Normalize(joined, peak)
	}
	out := &Clip{SampleRate: sampleRate, Channels: 1, Samples: joined}
	return out.Encode(), nil
}

// Normalize scales samples in place so the loudest reaches peak of full scale.
func Normalize(samples []int16, peak float64) {
	maxAbs := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}
	if maxAbs == 0 {
		return
	}
	gain := peak * math.MaxInt16 / float64(maxAbs)
	for i, s := range samples {
		samples[i] = clamp16(float64(s) * gain)
	}
}

// Tone renders a sine wave, used when no synthesis engine is available.
func Tone(frequency, amplitude float64, duration time.Duration, sampleRate int) *Clip {
	n := int(math.Round(duration.Seconds() * float64(sampleRate)))
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = clamp16(amplitude * math.MaxInt16 * math.Sin(2*math.Pi*frequency*t))
	}
	return &Clip{SampleRate: sampleRate, Channels: 1, Samples: samples}
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
