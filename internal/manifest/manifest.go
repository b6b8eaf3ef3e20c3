// Package manifest lists the artifacts of a run with their digests.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"example.com/obdgate/internal/common"
	"example.com/obdgate/internal/crypto"
)

type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

type Manifest struct {
	CreatedAt time.Time  `json:"createdAt"`
	ShaAlgo   string     `json:"shaAlgo"`
	VIN       string     `json:"vin,omitempty"`
	Items     []Item     `json:"items"`
	Signature *Signature `json:"signature,omitempty"`
}

type Signature struct {
	Type          string `json:"type"`
	SignatureFile string `json:"signatureFile,omitempty"`
}

// Build hashes every path.
func Build(vin string, paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256", VIN: vin}
	for _, p := range paths {
		sum, sz, err := common.Sha256OfFile(p)
		if err != nil {
			return m, fmt.Errorf("hash %s: %w", p, err)
		}
		m.Items = append(m.Items, Item{Path: p, Size: sz, Sha256: sum, Type: itemType(p)})
	}
	return m, nil
}

func itemType(path string) string {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(base, ".jsonl") && strings.Contains(base, "request"):
		return "requests"
	case strings.HasSuffix(base, ".jsonl"):
		return "outcomes"
	case strings.HasSuffix(base, ".json"):
		return "acceptance"
	case strings.HasSuffix(base, ".pdf"):
		return "pdf"
	case strings.HasSuffix(base, ".yaml"), strings.HasSuffix(base, ".yml"):
		return "config"
	case strings.HasSuffix(base, ".db"):
		return "registry"
	case strings.HasSuffix(base, ".log"):
		return "log"
	}
	return "other"
}

func (m Manifest) bytes() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Digest is the sha256 of the manifest as Save writes it.
func (m Manifest) Digest() (string, error) {
	b, err := m.bytes()
	if err != nil {
		return "", err
	}
	h := common.NewHasher()
	h.Write(b)
	return "sha256:" + h.Sum(), nil
}

func Save(m Manifest, out string) error {
	b, err := m.bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0o644)
}

func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

// Sign writes a detached JWS over the unsigned manifest next to out and
// records it in the saved manifest.
func Sign(m Manifest, keyPEM []byte, out string) (Manifest, error) {
	m.Signature = nil
	payload, err := m.bytes()
	if err != nil {
		return m, err
	}
	sig, err := crypto.SignDetachedJWS(payload, keyPEM)
	if err != nil {
		return m, fmt.Errorf("sign manifest: %w", err)
	}
	sigPath := out + ".jws"
	b, err := json.Marshal(sig)
	if err != nil {
		return m, err
	}
	if err := os.WriteFile(sigPath, b, 0o644); err != nil {
		return m, err
	}
	m.Signature = &Signature{Type: "JWS-RS256", SignatureFile: filepath.Base(sigPath)}
	return m, Save(m, out)
}

// Verify checks the detached signature of the manifest saved at path.
func Verify(path string, keyPEM []byte) error {
	m, err := Load(path)
	if err != nil {
		return err
	}
	if m.Signature == nil {
		return fmt.Errorf("manifest %s is not signed", path)
	}
	raw, err := os.ReadFile(filepath.Join(filepath.Dir(path), m.Signature.SignatureFile))
	if err != nil {
		return err
	}
	var sig crypto.JWS
	if err := json.Unmarshal(raw, &sig); err != nil {
		return err
	}
	pub, err := crypto.PublicKey(keyPEM)
	if err != nil {
		return err
	}
	m.Signature = nil
	payload, err := m.bytes()
	if err != nil {
		return err
	}
	return crypto.VerifyDetachedJWS(sig, payload, pub)
}
