package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// UploadSampleRate is the sample rate the model expects for microphone audio.
const UploadSampleRate = 16000

// FoldToMono averages interleaved 16-bit little-endian channels down to one.
func FoldToMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frameBytes := channels * 2
	frames := len(pcm) / frameBytes
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			off := i*frameBytes + c*2
			sum += int(int16(binary.LittleEndian.Uint16(pcm[off : off+2])))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sum/channels)))
	}
	return out
}

// Resample converts mono 16-bit little-endian PCM between sample rates using
// nearest-sample selection. Exact for integer downsample ratios, which is the
// common 48 kHz capture to 16 kHz upload path.
func Resample(pcm []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", fromRate, toRate)
	}
	if fromRate == toRate {
		return pcm, nil
	}
	srcSamples := len(pcm) / 2
	dstSamples := srcSamples * toRate / fromRate
	out := make([]byte, dstSamples*2)
	for i := 0; i < dstSamples; i++ {
		src := i * fromRate / toRate
		copy(out[i*2:i*2+2], pcm[src*2:src*2+2])
	}
	return out, nil
}

// PrepareUploadFrame normalizes one raw capture frame to 16 kHz mono 16-bit
// little-endian PCM and base64-encodes it for the wire.
func PrepareUploadFrame(pcm []byte, captureRate, channels int) (string, error) {
	mono := FoldToMono(pcm, channels)
	resampled, err := Resample(mono, captureRate, UploadSampleRate)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(resampled), nil
}
