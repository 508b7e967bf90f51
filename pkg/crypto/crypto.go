package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"errors"
	"fmt"
)

// Key and packet size constants.
const (
	// KeySize is the size of all derived keys (MD5 digest).
	KeySize = 16

	// BlockSize is the AES block size.
	BlockSize = aes.BlockSize

	// NonceSize is the size of the handshake nonces.
	NonceSize = 6

	// LocalKeyPrefixSize is how much of the pre-shared local key the
	// protocol actually uses for key derivation.
	LocalKeyPrefixSize = 6

	// AuthKeySize is the size of the device auth key delivered in the
	// device info response.
	AuthKeySize = 32

	// sealOverhead is flag byte + IV.
	sealOverhead = 1 + BlockSize
)

// SecurityFlag selects which key a sealed packet was encrypted with.
type SecurityFlag byte

const (
	// FlagAuthKey selects the device auth key.
	FlagAuthKey SecurityFlag = 0x01

	// FlagLoginKey selects the pre-session login key. Only the handshake
	// frame uses it.
	FlagLoginKey SecurityFlag = 0x04

	// FlagSessionKey selects the negotiated session key.
	FlagSessionKey SecurityFlag = 0x05
)

// String returns the flag name.
func (f SecurityFlag) String() string {
	switch f {
	case FlagAuthKey:
		return "AUTH"
	case FlagLoginKey:
		return "LOGIN"
	case FlagSessionKey:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Crypto errors.
var (
	// ErrDecrypt indicates tampered or garbled ciphertext. Fatal to the
	// frame, not the session.
	ErrDecrypt = errors.New("decrypt failed")

	// ErrKeyUnavailable indicates no key is held for the security flag.
	ErrKeyUnavailable = errors.New("key unavailable")

	// ErrShortLocalKey indicates the pre-shared local key is too short.
	ErrShortLocalKey = errors.New("local key too short")
)

// LoginKey derives the pre-session login key from the pre-shared local key.
// Only the first 6 bytes of the local key enter the derivation; that is the
// portion devices bake into their pairing material.
func LoginKey(localKey []byte) ([]byte, error) {
	if len(localKey) < LocalKeyPrefixSize {
		return nil, ErrShortLocalKey
	}
	sum := md5.Sum(localKey[:LocalKeyPrefixSize])
	return sum[:], nil
}

// DeriveSessionKey derives the session key from the pre-shared local key and
// the nonces exchanged during the handshake. Folding both nonces gives each
// session an effectively unique key without transmitting extra IV material.
func DeriveSessionKey(localKey, localNonce, remoteNonce []byte) ([]byte, error) {
	if len(localKey) < LocalKeyPrefixSize {
		return nil, ErrShortLocalKey
	}
	h := md5.New()
	h.Write(localKey[:LocalKeyPrefixSize])
	h.Write(localNonce)
	h.Write(remoteNonce)
	return h.Sum(nil), nil
}

// NewNonce returns a fresh random handshake nonce.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// Keyring holds the keys of one session. The session state machine is the
// only writer; a new connection attempt starts from a fresh Keyring.
type Keyring struct {
	login   []byte
	session []byte
	auth    []byte
}

// NewKeyring creates a keyring holding the login key for the given
// pre-shared local key. Session and auth keys are installed as the
// handshake progresses.
func NewKeyring(localKey []byte) (*Keyring, error) {
	login, err := LoginKey(localKey)
	if err != nil {
		return nil, err
	}
	return &Keyring{login: login}, nil
}

// SetSessionKey installs the negotiated session key.
func (k *Keyring) SetSessionKey(key []byte) {
	k.session = key
}

// SetAuthKey installs the device auth key from the device info response.
func (k *Keyring) SetAuthKey(key []byte) {
	k.auth = key
}

// HasSessionKey reports whether a session key has been negotiated.
func (k *Keyring) HasSessionKey() bool {
	return k.session != nil
}

// Key returns the key selected by the security flag.
func (k *Keyring) Key(flag SecurityFlag) ([]byte, error) {
	var key []byte
	switch flag {
	case FlagAuthKey:
		key = k.auth
	case FlagLoginKey:
		key = k.login
	case FlagSessionKey:
		key = k.session
	}
	if key == nil {
		return nil, fmt.Errorf("%w: flag %s", ErrKeyUnavailable, flag)
	}
	return key, nil
}

// Seal encrypts a plaintext frame into a transportable packet:
// security flag, random IV, AES-CBC ciphertext. The plaintext is
// zero-padded to the block size; the frame header's length field is what
// delimits real payload from padding after Open.
func (k *Keyring) Seal(flag SecurityFlag, plaintext []byte) ([]byte, error) {
	key, err := k.Key(flag)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pad(plaintext)
	out := make([]byte, sealOverhead+len(padded))
	out[0] = byte(flag)
	iv := out[1:sealOverhead]
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[sealOverhead:], padded)
	return out, nil
}

// Open decrypts a sealed packet and returns the padded plaintext together
// with the security flag it was sealed under. Any length inconsistency is
// reported as ErrDecrypt; Open never returns best-effort output.
func (k *Keyring) Open(packet []byte) ([]byte, SecurityFlag, error) {
	if len(packet) < sealOverhead+BlockSize {
		return nil, 0, fmt.Errorf("%w: packet too short (%d bytes)", ErrDecrypt, len(packet))
	}

	flag := SecurityFlag(packet[0])
	key, err := k.Key(flag)
	if err != nil {
		return nil, 0, err
	}

	iv := packet[1:sealOverhead]
	ciphertext := packet[sealOverhead:]
	if len(ciphertext)%BlockSize != 0 {
		return nil, 0, fmt.Errorf("%w: ciphertext length %d not block-aligned", ErrDecrypt, len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return plaintext, flag, nil
}

// pad zero-pads data to a multiple of the AES block size.
func pad(data []byte) []byte {
	rem := len(data) % BlockSize
	if rem == 0 && len(data) > 0 {
		return data
	}
	padded := make([]byte, len(data)+BlockSize-rem)
	copy(padded, data)
	return padded
}
