// Package x25 implements the running CRC-16 used by the MAVLink wire
// format (CRC-16/MCRF4XX: the X.25 polynomial, init 0xFFFF, no final
// xor). Both the parse and serialize paths fold the per-message
// crcExtra byte in as one additional update after header and payload.
package x25

// Init is the seed value for a fresh checksum.
const Init uint16 = 0xFFFF

// Accumulate folds one byte into a running checksum.
func Accumulate(b byte, crc uint16) uint16 {
	tmp := b ^ byte(crc&0xFF)
	tmp ^= tmp << 4
	return (crc >> 8) ^ (uint16(tmp) << 8) ^ (uint16(tmp) << 3) ^ (uint16(tmp) >> 4)
}

// Checksum computes the checksum of data with crcExtra folded in last.
// Pure function; safe for concurrent use.
func Checksum(data []byte, crcExtra byte) uint16 {
	crc := Init
	for _, b := range data {
		crc = Accumulate(b, crc)
	}
	return Accumulate(crcExtra, crc)
}

// ChecksumRaw computes the checksum of data without a crcExtra byte.
func ChecksumRaw(data []byte) uint16 {
	crc := Init
	for _, b := range data {
		crc = Accumulate(b, crc)
	}
	return crc
}
