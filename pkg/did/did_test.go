package did

import (
	"strings"
	"testing"
)

func TestParseFormatRoundTrip(t *testing.T) {
	d, err := Parse("did:sage:ethereum:0xAlice")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Network != "ethereum" || d.Address != "0xAlice" {
		t.Fatalf("unexpected parse result: %+v", d)
	}
	if Format(d.Network, d.Address) != "did:sage:ethereum:0xAlice" {
		t.Fatalf("unexpected format result: %s", d.String())
	}
}

func TestParseRejectsWrongSegmentCount(t *testing.T) {
	cases := []string{
		"did:sage:ethereum",
		"did:sage:ethereum:0xAlice:extra",
		"did:sage",
		"not-a-did",
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}

func TestParseRejectsWrongScheme(t *testing.T) {
	if _, err := Parse("foo:sage:ethereum:0xAlice"); err == nil {
		t.Fatal("expected error for wrong scheme")
	}
	if _, err := Parse("did:other:ethereum:0xAlice"); err == nil {
		t.Fatal("expected error for wrong method")
	}
}

func TestParseBoundaryLength(t *testing.T) {
	network := "ethereum"
	prefix := "did:sage:" + network + ":"
	addr := strings.Repeat("a", MaxLength-len(prefix))
	ok := prefix + addr
	if _, err := Parse(ok); err != nil {
		t.Fatalf("expected %d-byte did to be accepted: %v", len(ok), err)
	}

	tooLong := ok + "x"
	if _, err := Parse(tooLong); err == nil {
		t.Fatalf("expected %d-byte did to be rejected", len(tooLong))
	}
}
