package sph

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAesRoundTrip(t *testing.T) {
	codec := AesCodec{}

	cases := []struct {
		name       string
		message    string
		passphrase string
	}{
		{"short", "hello", "secret"},
		{"empty message", "", "secret"},
		{"block sized", strings.Repeat("a", 16), "secret"},
		{"long", strings.Repeat("vertretungsplan ", 100), "a much longer passphrase with spaces"},
		{"umlauts", "Ausfall in Fach Mathematik, 3. Stunde, Raum A101, Grüße", "pässwörd"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			blob, err := codec.Encrypt([]byte(c.message), []byte(c.passphrase))
			require.NoError(t, err)

			raw, err := base64.StdEncoding.DecodeString(string(blob))
			require.NoError(t, err)
			require.Equal(t, "Salted__", string(raw[:8]))

			plaintext, err := codec.Decrypt(blob, []byte(c.passphrase))
			require.NoError(t, err)
			require.Equal(t, c.message, string(plaintext))
		})
	}
}

func TestAesSaltVariesPerEncryption(t *testing.T) {
	codec := AesCodec{}

	one, err := codec.Encrypt([]byte("same message"), []byte("same passphrase"))
	require.NoError(t, err)
	two, err := codec.Encrypt([]byte("same message"), []byte("same passphrase"))
	require.NoError(t, err)

	require.NotEqual(t, string(one), string(two))
}

func TestAesDecryptRejectsMissingMarker(t *testing.T) {
	codec := AesCodec{}

	blob := base64.StdEncoding.EncodeToString([]byte("NotSalted_definitely_not_valid"))
	_, err := codec.Decrypt([]byte(blob), []byte("secret"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Salted__")
}

func TestAesDecryptRejectsGarbage(t *testing.T) {
	codec := AesCodec{}

	_, err := codec.Decrypt([]byte("!!! not base64 !!!"), []byte("secret"))
	require.Error(t, err)
}

func TestBytesToKeyIsDeterministic(t *testing.T) {
	salt := []byte("12345678")
	one := bytesToKey([]byte("passphrase"), salt, 48)
	two := bytesToKey([]byte("passphrase"), salt, 48)

	require.Equal(t, one, two)
	require.Len(t, one, 48)

	other := bytesToKey([]byte("different"), salt, 48)
	require.NotEqual(t, one, other)
}

func TestRsaRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	codec := NewRsaCodecFromKey(priv)

	message := []byte("session key material")
	blob, err := codec.Encrypt(message)
	require.NoError(t, err)

	plaintext, err := codec.Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, message, plaintext)
}

func TestRsaChunkedDecrypt(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	codec := NewRsaCodecFromKey(priv)

	// the handshake endpoint may batch several encrypted segments into a
	// single blob, each one modulus-sized
	segments := [][]byte{
		[]byte("first segment"),
		[]byte("second segment"),
		[]byte("third segment"),
	}
	var raw []byte
	for _, segment := range segments {
		blob, err := codec.Encrypt(segment)
		require.NoError(t, err)
		chunk, err := base64.StdEncoding.DecodeString(string(blob))
		require.NoError(t, err)
		require.Len(t, chunk, priv.PublicKey.Size())
		raw = append(raw, chunk...)
	}

	batched := base64.StdEncoding.EncodeToString(raw)
	plaintext, err := codec.Decrypt([]byte(batched))
	require.NoError(t, err)
	require.Equal(t, []byte("first segmentsecond segmentthird segment"), plaintext)
}

func TestRsaDecryptRequiresPrivateKey(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubOnly := &RsaCodec{pub: &priv.PublicKey}

	blob, err := pubOnly.Encrypt([]byte("message"))
	require.NoError(t, err)

	_, err = pubOnly.Decrypt(blob)
	require.Error(t, err)
}

func TestGenerateUuidLayout(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := generateUuid()
		require.Len(t, id, len(uuidTemplate))
		for pos, c := range uuidTemplate {
			switch c {
			case 'x', 'y':
				require.Contains(t, "0123456789abcdef", string(id[pos]))
			default:
				require.Equal(t, byte(c), id[pos])
			}
		}
		seen[id] = true
	}
	require.Greater(t, len(seen), 1)
}

func TestPkcs7Unpad(t *testing.T) {
	_, err := pkcs7Unpad(nil)
	require.Error(t, err)

	_, err = pkcs7Unpad(bytes.Repeat([]byte{0}, 16))
	require.Error(t, err)

	padded := pkcs7Pad([]byte("abc"))
	require.Len(t, padded, 16)
	unpadded, err := pkcs7Unpad(padded)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), unpadded)
}
