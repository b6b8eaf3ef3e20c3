package manifest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"example.com/obdgate/internal/crypto"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func TestBuildTypesAndDigests(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "outcomes.jsonl", "{}\n"),
		writeFile(t, dir, "requests.jsonl", "{}\n"),
		writeFile(t, dir, "acceptance.json", "{}"),
		writeFile(t, dir, "obdctl.yaml", "a: 1\n"),
	}
	m, err := Build("1XKYDP9X0MJ000001", paths)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []string{"outcomes", "requests", "acceptance", "config"}
	for i, item := range m.Items {
		if item.Type != want[i] {
			t.Errorf("%s type = %s, want %s", item.Path, item.Type, want[i])
		}
	}
	// sha256("{}")
	if m.Items[2].Sha256 != "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a" || m.Items[2].Size != 2 {
		t.Fatalf("acceptance item = %+v", m.Items[2])
	}
	d, err := m.Digest()
	if err != nil || !strings.HasPrefix(d, "sha256:") || len(d) != len("sha256:")+64 {
		t.Fatalf("digest = %q, %v", d, err)
	}
	if _, err := Build("", []string{filepath.Join(dir, "missing")}); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestSignAndVerify(t *testing.T) {
	dir := t.TempDir()
	m, err := Build("VIN", []string{writeFile(t, dir, "acceptance.json", "{}")})
	if err != nil {
		t.Fatal(err)
	}
	key := testKey(t)
	out := filepath.Join(dir, "manifest.json")
	signed, err := Sign(m, key, out)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.Signature == nil || signed.Signature.SignatureFile != "manifest.json.jws" {
		t.Fatalf("signature = %+v", signed.Signature)
	}
	if err := Verify(out, key); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := Verify(out, testKey(t)); !errors.Is(err, crypto.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature with another key, got %v", err)
	}

	tampered, err := Load(out)
	if err != nil {
		t.Fatal(err)
	}
	tampered.VIN = "OTHER"
	if err := Save(tampered, out); err != nil {
		t.Fatal(err)
	}
	if err := Verify(out, key); !errors.Is(err, crypto.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature after tampering, got %v", err)
	}
}
