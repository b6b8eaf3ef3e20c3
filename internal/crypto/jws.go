// Package crypto signs and verifies the run manifest.
package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
)

var ErrBadSignature = errors.New("jws: signature does not verify")

type JWS struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload,omitempty"`
	Signature string `json:"signature"`
}

// SignDetachedJWS signs payload with an RSA key (PKCS#1 or PKCS#8 PEM).
// The payload is left out of the result; the verifier supplies it.
func SignDetachedJWS(payload []byte, privateKeyPEM []byte) (JWS, error) {
	hb, err := json.Marshal(map[string]any{"alg": "RS256", "b64": true})
	if err != nil {
		return JWS{}, err
	}
	protected := base64.RawURLEncoding.EncodeToString(hb)
	priv, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return JWS{}, err
	}
	h := signingHash(protected, payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, h[:])
	if err != nil {
		return JWS{}, err
	}
	return JWS{Protected: protected, Signature: base64.RawURLEncoding.EncodeToString(sig)}, nil
}

// VerifyDetachedJWS checks sig over payload with the public half of key.
func VerifyDetachedJWS(sig JWS, payload []byte, pub *rsa.PublicKey) error {
	raw, err := base64.RawURLEncoding.DecodeString(sig.Signature)
	if err != nil {
		return fmt.Errorf("jws: decode signature: %w", err)
	}
	h := signingHash(sig.Protected, payload)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], raw); err != nil {
		return ErrBadSignature
	}
	return nil
}

func signingHash(protected string, payload []byte) [32]byte {
	return sha256.Sum256([]byte(protected + "." + base64.RawURLEncoding.EncodeToString(payload)))
}

// PublicKey returns the public half of a PEM private key.
func PublicKey(privateKeyPEM []byte) (*rsa.PublicKey, error) {
	priv, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return &priv.PublicKey, nil
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an RSA key")
	}
	return rsaKey, nil
}
