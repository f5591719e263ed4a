package main

import (
	"bytes"
	"testing"
)

func TestBuildPacket(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		interval uint
		percent  uint
		raw      string
		want     []byte
		wantErr  bool
	}{
		{"sample", "sample", 300, 0, "", []byte{0x49, 0x03, 0x53, 0x01, 0x2C}, false},
		{"sample max", "sample", 65535, 0, "", []byte{0x49, 0x03, 0x53, 0xFF, 0xFF}, false},
		{"sample overflow", "sample", 65536, 0, "", nil, true},
		{"bright", "bright", 0, 75, "", []byte{0x49, 0x02, 0x42, 0x4B}, false},
		{"bright over 100", "bright", 0, 101, "", nil, true},
		{"bright wraps byte", "bright", 0, 300, "", nil, true},
		{"raw", "raw", 0, 0, "49024265", []byte{0x49, 0x02, 0x42, 0x65}, false},
		{"raw bad hex", "raw", 0, 0, "zz", nil, true},
		{"unknown", "other", 0, 0, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildPacket(tt.kind, tt.interval, tt.percent, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("packet = % x, want % x", got, tt.want)
			}
		})
	}
}
