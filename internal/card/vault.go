package card

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mivanov-dev/bank-cards/internal/domain"
)

const (
	minNumberLen = 12
	maxNumberLen = 19
	minPINLen    = 4
	maxPINLen    = 6
)

// Vault owns the three credential transforms: the one-way lookup hash used
// as a unique index key, the reversible number cipher for authorized
// retrieval, and adaptive PIN hashing. Cipher errors never carry card data.
type Vault struct {
	key []byte
}

func NewVault(key []byte) (*Vault, error) {
	switch len(key) {
	case 16, 24, 32:
		return &Vault{key: key}, nil
	}
	return nil, fmt.Errorf("NewVault: key must be 16, 24, or 32 bytes, got %d", len(key))
}

// LookupHash returns the SHA-256 hex digest of the normalized number. It is
// a pure function of its input and is used only as an index key.
func (v *Vault) LookupHash(number string) (string, error) {
	normalized, err := validNumber(number)
	if err != nil {
		return "", fmt.Errorf("LookupHash: %w", err)
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), nil
}

// Encrypt returns the hex-encoded AES-CBC ciphertext of the normalized
// number, with a random IV prepended. Never equal to LookupHash output.
func (v *Vault) Encrypt(number string) (string, error) {
	normalized, err := validNumber(number)
	if err != nil {
		return "", fmt.Errorf("Encrypt: %w", err)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("Encrypt: %w", domain.ErrCrypto)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("Encrypt: iv: %w", domain.ErrCrypto)
	}

	plain := pkcs7Pad([]byte(normalized))
	out := make([]byte, len(iv)+len(plain))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(iv):], plain)
	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Errors describe only the failure mode, never
// the data.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	data, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("Decrypt: not hex: %w", domain.ErrCrypto)
	}
	if len(data) < 2*aes.BlockSize || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("Decrypt: bad ciphertext length: %w", domain.ErrCrypto)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("Decrypt: %w", domain.ErrCrypto)
	}

	iv, body := data[:aes.BlockSize], data[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	plain, err = pkcs7Unpad(plain)
	if err != nil {
		return "", fmt.Errorf("Decrypt: %w", domain.ErrCrypto)
	}
	return string(plain), nil
}

// HashPIN bcrypt-hashes the PIN. The caller's buffer is zeroed before
// return on every path, success or failure.
func (v *Vault) HashPIN(pin []byte) (string, error) {
	defer Scrub(pin)

	if len(pin) < minPINLen || len(pin) > maxPINLen || !allDigits(string(pin)) {
		return "", fmt.Errorf("HashPIN: %w", domain.ErrInvalidPIN)
	}

	hash, err := bcrypt.GenerateFromPassword(pin, bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("HashPIN: %w", domain.ErrCrypto)
	}
	return string(hash), nil
}

// CheckPIN verifies a raw PIN against a stored hash, scrubbing the buffer.
func (v *Vault) CheckPIN(pin []byte, hash string) error {
	defer Scrub(pin)

	if err := bcrypt.CompareHashAndPassword([]byte(hash), pin); err != nil {
		return fmt.Errorf("CheckPIN: %w", domain.ErrAccessDenied)
	}
	return nil
}

// Scrub overwrites a sensitive buffer in place.
func Scrub(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func validNumber(number string) (string, error) {
	normalized := Normalize(number)
	if len(normalized) < minNumberLen || len(normalized) > maxNumberLen || !allDigits(normalized) {
		return "", domain.ErrInvalidCardNumber
	}
	return normalized, nil
}

func pkcs7Pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	for i := 0; i < n; i++ {
		b = append(b, byte(n))
	}
	return b
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("bad padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("bad padding")
		}
	}
	return b[:len(b)-n], nil
}
