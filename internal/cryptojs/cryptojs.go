// Package cryptojs implements the passphrase mode of CryptoJS AES, which is
// the OpenSSL "Salted__" container: base64("Salted__" || salt || ciphertext)
// with key and IV derived by EVP_BytesToKey (MD5, one iteration) and
// AES-256-CBC with PKCS#7 padding.
package cryptojs

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5" //nolint:gosec // EVP_BytesToKey is defined over MD5
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	keySize  = 32
	ivSize   = aes.BlockSize
	saltSize = 8
)

var saltedPrefix = []byte("Salted__")

var (
	// ErrMalformed is returned when the ciphertext is not a valid
	// base64 "Salted__" container of whole AES blocks.
	ErrMalformed = errors.New("cryptojs: malformed ciphertext")

	// ErrBadPadding is returned when decryption does not end in valid
	// PKCS#7 padding, which almost always means a wrong passphrase.
	ErrBadPadding = errors.New("cryptojs: invalid padding")
)

// Payload is a parsed ciphertext. Parsing once and decrypting many times
// avoids repeating the base64 decode for every passphrase candidate.
type Payload struct {
	salt []byte
	data []byte
}

// Parse decodes a base64 "Salted__" container.
func Parse(ciphertext string) (*Payload, error) {
	raw, err := decodeBase64(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(raw) < len(saltedPrefix)+saltSize || !bytes.Equal(raw[:len(saltedPrefix)], saltedPrefix) {
		return nil, fmt.Errorf("%w: missing Salted__ header", ErrMalformed)
	}

	data := raw[len(saltedPrefix)+saltSize:]
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: payload of %d bytes is not a whole number of blocks", ErrMalformed, len(data))
	}

	return &Payload{
		salt: raw[len(saltedPrefix) : len(saltedPrefix)+saltSize],
		data: data,
	}, nil
}

// Decrypt decrypts the payload with the given passphrase.
// The last block is checked first so that wrong passphrases are rejected
// without decrypting the whole payload.
func (p *Payload) Decrypt(passphrase string) ([]byte, error) {
	key, iv := DeriveKey([]byte(passphrase), p.salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	prev := iv
	if len(p.data) > aes.BlockSize {
		prev = p.data[len(p.data)-2*aes.BlockSize : len(p.data)-aes.BlockSize]
	}
	last := make([]byte, aes.BlockSize)
	block.Decrypt(last, p.data[len(p.data)-aes.BlockSize:])
	for i := range last {
		last[i] ^= prev[i]
	}
	if _, err := paddingLen(last); err != nil {
		return nil, err
	}

	out := make([]byte, len(p.data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, p.data)

	n, err := paddingLen(out)
	if err != nil {
		return nil, err
	}
	return out[:len(out)-n], nil
}

// Decrypt parses ciphertext and decrypts it with passphrase.
func Decrypt(ciphertext, passphrase string) ([]byte, error) {
	p, err := Parse(ciphertext)
	if err != nil {
		return nil, err
	}
	return p.Decrypt(passphrase)
}

// Encrypt encrypts plaintext with passphrase under a random salt and
// returns the base64 container, as CryptoJS.AES.encrypt(text, pass).toString().
func Encrypt(plaintext []byte, passphrase string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return EncryptWithSalt(plaintext, passphrase, salt)
}

// EncryptWithSalt is Encrypt with a caller-provided 8-byte salt.
func EncryptWithSalt(plaintext []byte, passphrase string, salt []byte) (string, error) {
	if len(salt) != saltSize {
		return "", fmt.Errorf("cryptojs: salt must be %d bytes, got %d", saltSize, len(salt))
	}

	key, iv := DeriveKey([]byte(passphrase), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+padLen)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}

	out := make([]byte, 0, len(saltedPrefix)+saltSize+len(padded))
	out = append(out, saltedPrefix...)
	out = append(out, salt...)
	enc := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(enc, padded)
	out = append(out, enc...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// DeriveKey implements OpenSSL's EVP_BytesToKey with MD5 and a single
// iteration, producing a 32-byte key and a 16-byte IV.
func DeriveKey(passphrase, salt []byte) (key, iv []byte) {
	derived := make([]byte, 0, keySize+ivSize+md5.Size)
	var prev []byte
	for len(derived) < keySize+ivSize {
		h := md5.New() //nolint:gosec // EVP_BytesToKey is defined over MD5
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keySize], derived[keySize : keySize+ivSize]
}

// paddingLen validates PKCS#7 padding at the end of b and returns its length.
func paddingLen(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return 0, ErrBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return 0, ErrBadPadding
		}
	}
	return n, nil
}

// decodeBase64 accepts padded and unpadded standard base64, ignoring
// whitespace that pages sometimes wrap long literals with.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
