package secrets

import (
	"errors"
	"strings"
	"testing"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := New(testHexKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sealed, err := box.Seal("sip:user@pbx.example.com password=hunter2")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != "sip:user@pbx.example.com password=hunter2" {
		t.Errorf("opened = %q", opened)
	}
}

func TestSealIsNonDeterministic(t *testing.T) {
	box, _ := New(testHexKey)
	a, _ := box.Seal("same secret")
	b, _ := box.Seal("same secret")
	if a == b {
		t.Error("two seals of the same plaintext produced identical ciphertext")
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	box, _ := New(testHexKey)
	sealed, _ := box.Seal("secret")

	tampered := strings.Map(func(r rune) rune {
		if r == 'A' {
			return 'B'
		}
		return 'A'
	}, sealed)

	if _, err := box.Open(tampered); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("err = %v, want ErrInvalidCiphertext", err)
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	box1, _ := New(testHexKey)
	box2, _ := New("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

	sealed, _ := box1.Seal("secret")
	if _, err := box2.Open(sealed); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("err = %v, want ErrInvalidCiphertext", err)
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	for _, key := range []string{"", "short", "zz" + testHexKey[2:]} {
		if _, err := New(key); err == nil {
			t.Errorf("New(%q) accepted an invalid key", key)
		}
	}
}

func TestRawKeyAccepted(t *testing.T) {
	if _, err := New("0123456789abcdef0123456789abcdef"); err != nil {
		t.Errorf("32-byte raw key rejected: %v", err)
	}
}
