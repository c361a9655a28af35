package audio

import (
	"encoding/binary"
	"testing"
)

func TestNewWavBuffer(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767}
	wav := NewWavBuffer(samples, 16000)

	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("Expected %d bytes, got %d", 44+len(samples)*2, len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("Expected a RIFF/WAVE header")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if ch := binary.LittleEndian.Uint16(wav[22:24]); ch != 1 {
		t.Errorf("Expected 1 channel, got %d", ch)
	}
	if bits := binary.LittleEndian.Uint16(wav[34:36]); bits != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", bits)
	}
	if dataLen := binary.LittleEndian.Uint32(wav[40:44]); dataLen != uint32(len(samples)*2) {
		t.Errorf("Expected data length %d, got %d", len(samples)*2, dataLen)
	}
	if second := int16(binary.LittleEndian.Uint16(wav[46:48])); second != 1000 {
		t.Errorf("Expected second sample 1000, got %d", second)
	}
}

func TestNewWavBufferEmpty(t *testing.T) {
	wav := NewWavBuffer(nil, 16000)
	if len(wav) != 44 {
		t.Errorf("Expected a bare 44-byte header, got %d bytes", len(wav))
	}
}
