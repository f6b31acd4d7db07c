package crypto

import "testing"

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i)
	}
	addr := NewAddress(AccountPrefix, raw)

	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("expected %s, got %s", addr, decoded)
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-a-bech32-address"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestAddressZeroValue(t *testing.T) {
	var addr Address
	if !addr.IsZero() {
		t.Fatalf("expected zero value to report IsZero")
	}
	if addr.Equal(NewAddress(AccountPrefix, make([]byte, 20))) {
		t.Fatalf("zero address must not equal a real address")
	}
}
