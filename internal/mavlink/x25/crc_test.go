package x25

import "testing"

func TestChecksumRawKnownVectors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", nil, 0xFFFF},
		{"check_value", []byte("123456789"), 0x6F91}, // CRC-16/MCRF4XX check
		{"ascii", []byte("MAVLINK"), 0xE98C},
	}
	for _, tc := range cases {
		if got := ChecksumRaw(tc.data); got != tc.want {
			t.Fatalf("%s: got 0x%04X want 0x%04X", tc.name, got, tc.want)
		}
	}
}

func TestChecksumFoldsCrcExtra(t *testing.T) {
	got := Checksum([]byte{0x01, 0x02, 0x03}, 0x55)
	if got != 0x8562 {
		t.Fatalf("got 0x%04X want 0x8562", got)
	}
	// crcExtra must change the result
	if Checksum([]byte{0x01, 0x02, 0x03}, 0x56) == got {
		t.Fatalf("different crcExtra produced identical checksum")
	}
}

func TestAccumulateMatchesChecksum(t *testing.T) {
	data := []byte{0xFD, 0x09, 0x00, 0x00, 0x2A}
	crc := Init
	for _, b := range data {
		crc = Accumulate(b, crc)
	}
	if got := ChecksumRaw(data); got != crc {
		t.Fatalf("incremental 0x%04X != one-shot 0x%04X", crc, got)
	}
}
