package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestRoundTrip(t *testing.T) {
	key := testKey(t)

	// Lengths straddling block and chunk boundaries, none required to be a
	// multiple of the block size.
	for _, length := range []int{0, 1, 15, 16, 17, 255, 4096, chunkSize - 1, chunkSize, chunkSize + 5} {
		plaintext := make([]byte, length)
		_, err := rand.Read(plaintext)
		require.NoError(t, err)

		ciphertext, err := Encrypt(key, plaintext)
		require.NoError(t, err)

		decrypted, err := Decrypt(key, ciphertext)
		require.NoError(t, err)
		require.Equalf(t, plaintext, decrypted, "round trip at length %d", length)
	}
}

func TestEmptyPayloadDecryptsToEmptySlice(t *testing.T) {
	key := testKey(t)

	ciphertext, err := Encrypt(key, []byte{})
	require.NoError(t, err)
	// Header only: length field plus IV, no blocks.
	require.Len(t, ciphertext, headerSize)

	decrypted, err := Decrypt(key, ciphertext)
	require.NoError(t, err)
	require.NotNil(t, decrypted)
	require.Empty(t, decrypted)
}

func TestCiphertextHidesPlaintext(t *testing.T) {
	key := testKey(t)
	plaintext := bytes.Repeat([]byte("attack at dawn "), 100)

	ciphertext, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	require.NotContains(t, string(ciphertext), "attack at dawn")
}

func TestRandomIVMakesEncryptionNonDeterministic(t *testing.T) {
	key := testKey(t)
	plaintext := []byte("same message twice")

	first, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	second, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestRejectsWrongKeySize(t *testing.T) {
	_, err := Encrypt(make([]byte, 16), []byte("data"))
	require.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = Decrypt(make([]byte, 31), make([]byte, headerSize))
	require.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestRejectsImplausibleStoredLength(t *testing.T) {
	key := testKey(t)
	ciphertext, err := Encrypt(key, []byte("short payload"))
	require.NoError(t, err)

	// Inflate the stored length beyond what the ciphertext can cover.
	binary.LittleEndian.PutUint64(ciphertext[:8], 1<<20)

	_, err = Decrypt(key, ciphertext)
	require.ErrorIs(t, err, ErrLengthImplausible)
}

func TestRejectsPartialBlock(t *testing.T) {
	key := testKey(t)
	ciphertext, err := Encrypt(key, bytes.Repeat([]byte{0xAB}, 64))
	require.NoError(t, err)

	_, err = Decrypt(key, ciphertext[:len(ciphertext)-5])
	require.ErrorIs(t, err, ErrCiphertextMangled)
}

func TestFileRoundTrip(t *testing.T) {
	key := testKey(t)
	dir := t.TempDir()

	plaintext := make([]byte, 10000)
	_, err := rand.Read(plaintext)
	require.NoError(t, err)

	in := filepath.Join(dir, "payload")
	encrypted := filepath.Join(dir, "payload.enc")
	decrypted := filepath.Join(dir, "payload.dec")
	require.NoError(t, os.WriteFile(in, plaintext, 0o600))

	require.NoError(t, EncryptFile(key, in, encrypted))
	require.NoError(t, DecryptFile(key, encrypted, decrypted))

	out, err := os.ReadFile(decrypted)
	require.NoError(t, err)
	require.Equal(t, plaintext, out)
}
