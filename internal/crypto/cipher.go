// Package crypto is the symmetric payload cipher collaborating with the
// puzzle engine: AES-256-CBC with a random per-message IV and the original
// plaintext length stored up front so padding strips exactly on decrypt.
//
// Stream layout: 8-byte little-endian original length, 16-byte IV, CBC
// ciphertext (zero-padded to the block size).
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// KeySize is the only accepted key length.
	KeySize = 32

	headerSize = 8 + aes.BlockSize
	chunkSize  = 64 * 1024
)

var (
	ErrInvalidKeySize    = errors.New("invalid payload cipher key size")
	ErrCiphertextMangled = errors.New("ciphertext is not a whole number of blocks")
	ErrLengthImplausible = errors.New("stored plaintext length exceeds ciphertext capacity")
)

// EncryptStream encrypts exactly plainSize bytes read from in. The size has
// to be known up front because it is part of the header.
func EncryptStream(key []byte, plainSize uint64, in io.Reader, out io.Writer) error {
	block, err := newBlock(key)
	if err != nil {
		return err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return fmt.Errorf("failed to generate IV: %w", err)
	}

	header := make([]byte, 0, headerSize)
	header = binary.LittleEndian.AppendUint64(header, plainSize)
	header = append(header, iv...)
	if _, err := out.Write(header); err != nil {
		return err
	}

	encrypter := cipher.NewCBCEncrypter(block, iv)
	buf := make([]byte, chunkSize)
	var consumed uint64

	for consumed < plainSize {
		want := uint64(chunkSize)
		if left := plainSize - consumed; left < want {
			want = left
		}
		n, err := io.ReadFull(in, buf[:want])
		if err != nil {
			return fmt.Errorf("plaintext ended after %d of %d bytes: %w", consumed+uint64(n), plainSize, err)
		}
		consumed += want

		chunk := buf[:want]
		if pad := len(chunk) % aes.BlockSize; pad != 0 {
			chunk = append(chunk, make([]byte, aes.BlockSize-pad)...)
		}
		encrypter.CryptBlocks(chunk, chunk)
		if _, err := out.Write(chunk); err != nil {
			return err
		}
	}

	return nil
}

// DecryptStream reverses EncryptStream, writing exactly the stored original
// length to out. A stored length larger than the ciphertext actually covers
// is rejected instead of silently truncating.
func DecryptStream(key []byte, in io.Reader, out io.Writer) error {
	block, err := newBlock(key)
	if err != nil {
		return err
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(in, header); err != nil {
		return fmt.Errorf("failed to read payload header: %w", err)
	}
	plainSize := binary.LittleEndian.Uint64(header[:8])
	iv := header[8:]

	decrypter := cipher.NewCBCDecrypter(block, iv)
	buf := make([]byte, chunkSize)
	var written uint64

	for {
		n, err := io.ReadFull(in, buf)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return err
		}
		if n%aes.BlockSize != 0 {
			return ErrCiphertextMangled
		}

		chunk := buf[:n]
		decrypter.CryptBlocks(chunk, chunk)

		if written < plainSize {
			keep := uint64(len(chunk))
			if left := plainSize - written; left < keep {
				keep = left
			}
			if _, werr := out.Write(chunk[:keep]); werr != nil {
				return werr
			}
			written += keep
		}

		if err == io.ErrUnexpectedEOF {
			break
		}
	}

	if written < plainSize {
		return fmt.Errorf("%w: stored %d, decrypted %d", ErrLengthImplausible, plainSize, written)
	}
	return nil
}

// Encrypt is the in-memory convenience wrapper.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := EncryptStream(key, uint64(len(plaintext)), bytes.NewReader(plaintext), &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decrypt is the in-memory convenience wrapper. The result is never nil: an
// empty payload decrypts to an empty slice.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := DecryptStream(key, bytes.NewReader(ciphertext), &out); err != nil {
		return nil, err
	}
	if out.Len() == 0 {
		return []byte{}, nil
	}
	return out.Bytes(), nil
}

// EncryptFile encrypts inPath to outPath.
func EncryptFile(key []byte, inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	if err := EncryptStream(key, uint64(info.Size()), in, out); err != nil {
		out.Close()
		_ = os.Remove(outPath)
		return err
	}
	return out.Close()
}

// DecryptFile decrypts inPath to outPath.
func DecryptFile(key []byte, inPath, outPath string) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	if err := DecryptStream(key, in, out); err != nil {
		out.Close()
		_ = os.Remove(outPath)
		return err
	}
	return out.Close()
}

func newBlock(key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}
	return aes.NewCipher(key)
}
