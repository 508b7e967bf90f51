// Package crypto implements the symmetric primitives of the Tuya BLE local
// protocol: login/session key derivation, AES-CBC packet sealing keyed by a
// security flag, and the CRC16 frame checksum.
//
// The cipher suite is fixed by deployed device firmware: keys are 16-byte
// MD5 digests of the pre-shared local key material, and every sealed packet
// carries a security flag byte selecting the key, followed by a random IV
// and the CBC ciphertext. The handshake frame is sealed with the login key
// (derived from the raw local key alone); all later traffic uses the session
// key, which folds the nonces exchanged during the handshake.
package crypto
