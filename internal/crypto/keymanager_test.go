package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Well-known test vector: the secp256k1 key 0x...01 derives this address.
const (
	testKeyHex  = "0000000000000000000000000000000000000000000000000000000000000001"
	testKeyAddr = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey returned error: %v", err)
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey returned error: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("round trip mismatch: %s", got)
	}

	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Fatal("DecryptKey accepted the wrong password")
	}
}

func TestEncryptKeyValidation(t *testing.T) {
	if _, err := EncryptKey(testKeyHex, ""); err == nil {
		t.Fatal("EncryptKey accepted an empty password")
	}
	if _, err := EncryptKey("nothex", "pw"); err == nil {
		t.Fatal("EncryptKey accepted non-hex input")
	}
	if _, err := EncryptKey("abcd", "pw"); err == nil {
		t.Fatal("EncryptKey accepted a short key")
	}
}

func TestLoadKeyPrefersRawKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	if err != nil {
		t.Fatalf("LoadKey returned error: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("LoadKey = %s, want %s", got, testKeyHex)
	}

	if _, err := LoadKey(KeyConfig{}); err == nil {
		t.Fatal("LoadKey accepted an empty config")
	}
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "pw")
	if err != nil {
		t.Fatalf("EncryptKey returned error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "admin.key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("LoadKey returned error: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("LoadKey = %s, want %s", got, testKeyHex)
	}
}

func TestAdminAddress(t *testing.T) {
	addr, err := AdminAddress(testKeyHex)
	if err != nil {
		t.Fatalf("AdminAddress returned error: %v", err)
	}
	if !strings.EqualFold(addr.Hex(), testKeyAddr) {
		t.Fatalf("address = %s, want %s", addr.Hex(), testKeyAddr)
	}

	if _, err := AdminAddress("zz"); err == nil {
		t.Fatal("AdminAddress accepted invalid hex")
	}
}
