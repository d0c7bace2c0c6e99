package fetch

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/hlsget/hlsget/internal/engine/types"
)

// Decrypt applies the task's encryption descriptor to one segment's bytes.
// A nil descriptor or empty method returns the data untouched. Decryption
// is synchronous; there is no suspension point here.
func Decrypt(enc *types.EncryptionDescriptor, seg *types.SegmentRef, data []byte) ([]byte, error) {
	if enc == nil || enc.Method == "" || enc.Method == "NONE" {
		return data, nil
	}
	if enc.Method != "AES-128" {
		return nil, fmt.Errorf("segment %d: unsupported encryption method %q", seg.Index, enc.Method)
	}

	block, err := aes.NewCipher(enc.Key)
	if err != nil {
		return nil, fmt.Errorf("segment %d: %w", seg.Index, err)
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("segment %d: ciphertext not block-aligned (%d bytes)", seg.Index, len(data))
	}

	iv := enc.IV
	if len(iv) == 0 {
		iv = sequenceIV(enc.Sequence + uint64(seg.Index))
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return unpadPKCS7(out, seg.Index)
}

// sequenceIV derives the standard HLS IV: the segment's media sequence
// number as a big-endian 128-bit value.
func sequenceIV(seq uint64) []byte {
	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint64(iv[8:], seq)
	return iv
}

func unpadPKCS7(data []byte, index int) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return nil, fmt.Errorf("segment %d: invalid padding", index)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("segment %d: invalid padding", index)
		}
	}
	return data[:len(data)-pad], nil
}
