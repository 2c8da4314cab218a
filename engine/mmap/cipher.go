package mmap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/minio/highwayhash"
	"github.com/viant/mmkv/engine"
)

var hashKey = []byte("mmkv-go/highwayhash/key/00000032")

// streamCipher seals record payloads with AES-CTR and a random IV prefix.
// Keys shorter than the cipher key size are zero padded.
type streamCipher struct {
	typ   engine.EncryptionType
	key   []byte
	block cipher.Block
}

func newCipher(key string, typ engine.EncryptionType) (*streamCipher, error) {
	if typ == "" {
		typ = engine.AES128
	}
	if err := typ.ValidateKey(key); err != nil {
		return nil, err
	}
	padded := make([]byte, typ.KeySize())
	copy(padded, key)
	block, err := aes.NewCipher(padded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrInvalidKey, err)
	}
	return &streamCipher{typ: typ, key: padded, block: block}, nil
}

func (c *streamCipher) seal(plain []byte) ([]byte, error) {
	out := make([]byte, aes.BlockSize+len(plain))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	cipher.NewCTR(c.block, iv).XORKeyStream(out[aes.BlockSize:], plain)
	return out, nil
}

func (c *streamCipher) open(sealed []byte) ([]byte, error) {
	if len(sealed) < aes.BlockSize {
		return nil, engine.ErrCorrupt
	}
	iv := sealed[:aes.BlockSize]
	plain := make([]byte, len(sealed)-aes.BlockSize)
	cipher.NewCTR(c.block, iv).XORKeyStream(plain, sealed[aes.BlockSize:])
	return plain, nil
}

// check returns a fingerprint of the cipher type and key stored in the meta file.
func (c *streamCipher) check() string {
	data := append([]byte(string(c.typ)+":"), c.key...)
	return fmt.Sprintf("%016x", highwayhash.Sum64(data, hashKey))
}

func (c *streamCipher) name() string {
	if c == nil {
		return ""
	}
	return string(c.typ)
}

func (c *streamCipher) keyCheck() string {
	if c == nil {
		return ""
	}
	return c.check()
}
