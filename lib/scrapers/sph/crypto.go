package sph

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

const aesBlockSize = 16
const saltedMarker = "Salted__"

// OpenSSL EVP_BytesToKey with MD5: hash the running digest concatenated
// with passphrase+salt until enough key material is produced. The portal's
// javascript uses CryptoJS which implements exactly this scheme.
func bytesToKey(passphrase, salt []byte, output int) []byte {
	data := make([]byte, 0, len(passphrase)+len(salt))
	data = append(data, passphrase...)
	data = append(data, salt...)

	sum := md5.Sum(data)
	digest := sum[:]
	material := append([]byte(nil), digest...)
	for len(material) < output {
		hash := md5.New()
		hash.Write(digest)
		hash.Write(data)
		digest = hash.Sum(nil)
		material = append(material, digest...)
	}
	return material[:output]
}

func pkcs7Pad(data []byte) []byte {
	padding := aesBlockSize - len(data)%aesBlockSize
	padded := make([]byte, 0, len(data)+padding)
	padded = append(padded, data...)
	return append(padded, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aesBlockSize != 0 {
		return nil, fmt.Errorf("invalid padded length: %d", len(data))
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > aesBlockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding byte: %d", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}

// AesCodec implements the OpenSSL-compatible symmetric scheme the portal
// expects: base64("Salted__" + 8 byte salt + AES-256-CBC ciphertext), with
// key and IV derived from the passphrase via bytesToKey.
type AesCodec struct{}

func (AesCodec) Encrypt(message, passphrase []byte) ([]byte, error) {
	salt := make([]byte, 8)
	_, err := rand.Read(salt)
	if err != nil {
		return nil, err
	}

	material := bytesToKey(passphrase, salt, 32+16)
	block, err := aes.NewCipher(material[:32])
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(message)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, material[32:]).CryptBlocks(ciphertext, padded)

	raw := make([]byte, 0, len(saltedMarker)+len(salt)+len(ciphertext))
	raw = append(raw, saltedMarker...)
	raw = append(raw, salt...)
	raw = append(raw, ciphertext...)

	blob := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(blob, raw)
	return blob, nil
}

func (AesCodec) Decrypt(blob, passphrase []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(blob)))
	n, err := base64.StdEncoding.Decode(raw, blob)
	if err != nil {
		return nil, err
	}
	raw = raw[:n]

	if len(raw) < 16 || string(raw[:8]) != saltedMarker {
		return nil, fmt.Errorf("missing %q marker", saltedMarker)
	}
	salt := raw[8:16]
	ciphertext := raw[16:]
	if len(ciphertext)%aesBlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not block aligned", len(ciphertext))
	}

	material := bytesToKey(passphrase, salt, 32+16)
	block, err := aes.NewCipher(material[:32])
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, material[32:]).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

// RsaCodec wraps the server-supplied public key. Decrypt is only possible
// when the codec was built from a full keypair, which happens in tests that
// stand in for the portal.
type RsaCodec struct {
	pub  *rsa.PublicKey
	priv *rsa.PrivateKey
}

func NewRsaCodec(publicKeyPem string) (*RsaCodec, error) {
	block, _ := pem.Decode([]byte(publicKeyPem))
	if block == nil {
		return nil, fmt.Errorf("public key is not valid pem")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		pkcs1, pkcs1Err := x509.ParsePKCS1PublicKey(block.Bytes)
		if pkcs1Err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		return &RsaCodec{pub: pkcs1}, nil
	}

	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not an rsa key")
	}
	return &RsaCodec{pub: pub}, nil
}

func NewRsaCodecFromKey(priv *rsa.PrivateKey) *RsaCodec {
	return &RsaCodec{pub: &priv.PublicKey, priv: priv}
}

func (c *RsaCodec) Encrypt(message []byte) ([]byte, error) {
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, c.pub, message)
	if err != nil {
		return nil, err
	}
	blob := make([]byte, base64.StdEncoding.EncodedLen(len(ciphertext)))
	base64.StdEncoding.Encode(blob, ciphertext)
	return blob, nil
}

// the handshake endpoint may batch multiple encrypted segments into one
// base64 blob, so decryption walks the input in modulus-sized chunks and
// concatenates the plaintexts
func (c *RsaCodec) Decrypt(blob []byte) ([]byte, error) {
	if c.priv == nil {
		return nil, fmt.Errorf("no private key available")
	}

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(blob)))
	n, err := base64.StdEncoding.Decode(raw, blob)
	if err != nil {
		return nil, err
	}
	raw = raw[:n]

	chunkSize := c.pub.Size()
	var plaintext []byte
	for offset := 0; offset < len(raw); offset += chunkSize {
		end := offset + chunkSize
		if end > len(raw) {
			end = len(raw)
		}
		segment, err := rsa.DecryptPKCS1v15(nil, c.priv, raw[offset:end])
		if err != nil {
			return nil, err
		}
		plaintext = append(plaintext, segment...)
	}
	return plaintext, nil
}
