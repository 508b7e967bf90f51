package crypto

import (
	"bytes"
	"crypto/md5"
	"errors"
	"testing"
)

var testLocalKey = []byte("0123456789abcdef")

func TestLoginKeyDerivation(t *testing.T) {
	key, err := LoginKey(testLocalKey)
	if err != nil {
		t.Fatalf("LoginKey failed: %v", err)
	}
	// Only the first 6 bytes of the local key enter the derivation.
	want := md5.Sum([]byte("012345"))
	if !bytes.Equal(key, want[:]) {
		t.Errorf("LoginKey = %x, want %x", key, want)
	}

	same, _ := LoginKey([]byte("012345__different_tail"))
	if !bytes.Equal(key, same) {
		t.Error("LoginKey must ignore local key bytes past the prefix")
	}
}

func TestLoginKeyShortKey(t *testing.T) {
	_, err := LoginKey([]byte("abc"))
	if !errors.Is(err, ErrShortLocalKey) {
		t.Errorf("expected ErrShortLocalKey, got %v", err)
	}
}

func TestDeriveSessionKey(t *testing.T) {
	localNonce := []byte{1, 2, 3, 4, 5, 6}
	remoteNonce := []byte{9, 8, 7, 6, 5, 4}

	key, err := DeriveSessionKey(testLocalKey, localNonce, remoteNonce)
	if err != nil {
		t.Fatalf("DeriveSessionKey failed: %v", err)
	}
	if len(key) != KeySize {
		t.Fatalf("session key size = %d, want %d", len(key), KeySize)
	}

	// Different nonces must produce a different key.
	other, err := DeriveSessionKey(testLocalKey, localNonce, []byte{0, 0, 0, 0, 0, 1})
	if err != nil {
		t.Fatalf("DeriveSessionKey failed: %v", err)
	}
	if bytes.Equal(key, other) {
		t.Error("session keys for different nonces must differ")
	}

	// Same inputs must be deterministic.
	again, _ := DeriveSessionKey(testLocalKey, localNonce, remoteNonce)
	if !bytes.Equal(key, again) {
		t.Error("session key derivation must be deterministic")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	ring, err := NewKeyring(testLocalKey)
	if err != nil {
		t.Fatalf("NewKeyring failed: %v", err)
	}
	sessionKey, _ := DeriveSessionKey(testLocalKey, []byte{1, 2, 3, 4, 5, 6}, []byte{6, 5, 4, 3, 2, 1})
	ring.SetSessionKey(sessionKey)

	tests := []struct {
		name      string
		flag      SecurityFlag
		plaintext []byte
	}{
		{"login key short", FlagLoginKey, []byte("hello")},
		{"session key short", FlagSessionKey, []byte("hello")},
		{"block aligned", FlagSessionKey, bytes.Repeat([]byte{0xAB}, 32)},
		{"long payload", FlagSessionKey, bytes.Repeat([]byte{0x01, 0x02}, 300)},
		{"empty", FlagSessionKey, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packet, err := ring.Seal(tt.flag, tt.plaintext)
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if SecurityFlag(packet[0]) != tt.flag {
				t.Errorf("security flag = %#x, want %#x", packet[0], byte(tt.flag))
			}

			plaintext, flag, err := ring.Open(packet)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if flag != tt.flag {
				t.Errorf("Open flag = %v, want %v", flag, tt.flag)
			}
			// Open returns zero-padded plaintext.
			if len(plaintext)%BlockSize != 0 {
				t.Errorf("padded plaintext length %d not block-aligned", len(plaintext))
			}
			if !bytes.Equal(plaintext[:len(tt.plaintext)], tt.plaintext) {
				t.Error("plaintext mismatch after round trip")
			}
			for _, b := range plaintext[len(tt.plaintext):] {
				if b != 0 {
					t.Error("padding bytes must be zero")
					break
				}
			}
		})
	}
}

func TestSealProducesFreshIV(t *testing.T) {
	ring, _ := NewKeyring(testLocalKey)
	a, err := ring.Seal(FlagLoginKey, []byte("same plaintext"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	b, err := ring.Seal(FlagLoginKey, []byte("same plaintext"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("sealing the same plaintext twice must not produce identical packets")
	}
}

func TestOpenFailsClosed(t *testing.T) {
	ring, _ := NewKeyring(testLocalKey)

	tests := []struct {
		name    string
		packet  []byte
		wantErr error
	}{
		{"empty", nil, ErrDecrypt},
		{"too short", []byte{0x04, 1, 2, 3}, ErrDecrypt},
		{
			"unaligned ciphertext",
			append(append([]byte{0x04}, make([]byte, BlockSize)...), make([]byte, BlockSize+3)...),
			ErrDecrypt,
		},
		{
			"unknown flag",
			append(append([]byte{0x7F}, make([]byte, BlockSize)...), make([]byte, BlockSize)...),
			ErrKeyUnavailable,
		},
		{
			"session key not negotiated",
			append(append([]byte{0x05}, make([]byte, BlockSize)...), make([]byte, BlockSize)...),
			ErrKeyUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ring.Open(tt.packet)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Open error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestKeyringKeySelection(t *testing.T) {
	ring, _ := NewKeyring(testLocalKey)

	if _, err := ring.Key(FlagLoginKey); err != nil {
		t.Errorf("login key must be available immediately: %v", err)
	}
	if ring.HasSessionKey() {
		t.Error("session key must not exist before negotiation")
	}
	if _, err := ring.Key(FlagSessionKey); !errors.Is(err, ErrKeyUnavailable) {
		t.Errorf("expected ErrKeyUnavailable for session key, got %v", err)
	}
	if _, err := ring.Key(FlagAuthKey); !errors.Is(err, ErrKeyUnavailable) {
		t.Errorf("expected ErrKeyUnavailable for auth key, got %v", err)
	}

	ring.SetSessionKey(bytes.Repeat([]byte{1}, KeySize))
	ring.SetAuthKey(bytes.Repeat([]byte{2}, AuthKeySize))
	if !ring.HasSessionKey() {
		t.Error("HasSessionKey must report true after SetSessionKey")
	}
	if _, err := ring.Key(FlagSessionKey); err != nil {
		t.Errorf("session key must be available after SetSessionKey: %v", err)
	}
}

func TestCRC16KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		// CRC-16/MODBUS check value (same polynomial and init).
		{"123456789", []byte("123456789"), 0x4B37},
		{"empty", nil, 0xFFFF},
		{"single zero", []byte{0x00}, 0x40BF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC16(tt.data); got != tt.want {
				t.Errorf("CRC16 = %#04x, want %#04x", got, tt.want)
			}
		})
	}
}

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce failed: %v", err)
	}
	if len(a) != NonceSize {
		t.Fatalf("nonce size = %d, want %d", len(a), NonceSize)
	}
	b, _ := NewNonce()
	if bytes.Equal(a, b) {
		t.Error("two nonces must not collide")
	}
}
