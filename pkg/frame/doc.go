// Package frame implements the byte-level framing of the Tuya BLE local
// protocol: the logical frame header with its CRC16 trailer, and the
// fragmentation scheme that carries sealed frames over a notification
// transport with a small MTU.
//
// A logical frame is
//
//	seqNum     uint32  // big-endian
//	responseTo uint32  // 0 unless this frame answers another
//	code       uint16  // command code
//	dataLen    uint16
//	data       []byte
//	crc        uint16  // CRC16 over header+data
//
// sealed by the crypto layer and then split into transport fragments. Every
// fragment starts with a varint packet number; fragment 0 additionally
// carries the varint total sealed length and a version byte. Fragments are
// delivered in order per notification stream, so reassembly tracks only the
// next expected packet number and abandons the buffer on any gap.
package frame
