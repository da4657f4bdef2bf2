package model

import (
	"errors"
	"testing"

	"github.com/go-test/deep"
)

func TestParseFromString_RoundTrip(t *testing.T) {
	inputs := []string{"1.1.1.1:8080", "203.0.113.7:3128", "proxy.example.com:80"}
	for _, in := range inputs {
		r, err := ParseFromString(in)
		if err != nil {
			t.Fatalf("ParseFromString(%q) returned an error: %v", in, err)
		}
		if got := FormatAsString(r); got != in {
			t.Errorf("FormatAsString(ParseFromString(%q)) = %q", in, got)
		}
	}
}

func TestFormatAsString_RoundTrip(t *testing.T) {
	r, err := NewRecord(Attribute{KeyIP, "10.0.0.1"}, Attribute{KeyPort, "9090"})
	if err != nil {
		t.Fatalf("NewRecord returned an error: %v", err)
	}
	back, err := ParseFromString(FormatAsString(r))
	if err != nil {
		t.Fatalf("ParseFromString returned an error: %v", err)
	}
	if !back.Equal(r) {
		t.Errorf("Expected %v, got %v", r.Map(), back.Map())
	}
	if diff := deep.Equal(back.Keys(), []string{KeyIP, KeyPort}); diff != nil {
		t.Error(diff)
	}
}

func TestParseFromString_Malformed(t *testing.T) {
	cases := []string{"", "1.1.1.1", "1.1.1.1:80:90", ":80", "1.1.1.1:", "::1"}
	for _, in := range cases {
		_, err := ParseFromString(in)
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Errorf("ParseFromString(%q): expected *FormatError, got %v", in, err)
		}
	}
}

func TestNewRecord_Validation(t *testing.T) {
	if _, err := NewRecord(Attribute{KeyIP, "1.1.1.1"}); err == nil {
		t.Error("Expected missing port to be rejected")
	}
	if _, err := NewRecord(Attribute{KeyIP, "1.1.1.1"}, Attribute{KeyPort, "1"}, Attribute{KeyIP, "2.2.2.2"}); err == nil {
		t.Error("Expected duplicate key to be rejected")
	}
	if _, err := NewTableRecord([]string{"1.1.1.1", "80"}); err == nil {
		t.Error("Expected short table row to be rejected")
	}
}

func TestProxyRecord_Immutable(t *testing.T) {
	attrs := []Attribute{{KeyIP, "1.1.1.1"}, {KeyPort, "80"}}
	r, _ := NewRecord(attrs...)
	attrs[0].Value = "9.9.9.9"
	r.Map()[KeyIP] = "8.8.8.8"
	r.Attributes()[0].Value = "7.7.7.7"
	if r.IP() != "1.1.1.1" {
		t.Errorf("Record was mutated through an accessor, ip = %s", r.IP())
	}
}

func TestFilterSpec_Matches(t *testing.T) {
	r, _ := NewRecord(Attribute{KeyIP, "1.1.1.1"}, Attribute{KeyPort, "80"}, Attribute{KeyCountryCode, "US"})
	if !(FilterSpec{}).Matches(r) {
		t.Error("Empty filter should match every record")
	}
	if !(FilterSpec{KeyCountryCode: "US", KeyPort: "80"}).Matches(r) {
		t.Error("Expected conjunction to match")
	}
	if (FilterSpec{KeyCountryCode: "US", KeyPort: "81"}).Matches(r) {
		t.Error("Expected conjunction with one mismatch to fail")
	}
}

func TestParseFilterSpec(t *testing.T) {
	spec, err := ParseFilterSpec("country_code:US, supports_https:yes")
	if err != nil {
		t.Fatalf("ParseFilterSpec returned an error: %v", err)
	}
	want := FilterSpec{KeyCountryCode: "US", KeySupportsHTTPS: "yes"}
	if diff := deep.Equal(spec, want); diff != nil {
		t.Error(diff)
	}

	if spec, err := ParseFilterSpec("  "); err != nil || spec != nil {
		t.Errorf("Expected nil spec for blank input, got %v, %v", spec, err)
	}
	if _, err := ParseFilterSpec("country_code"); err == nil {
		t.Error("Expected an error for an item without ':'")
	}
}

func TestInvalidSourceError_ListsValidKeys(t *testing.T) {
	err := &InvalidSourceError{Key: "nope", Valid: []string{"a", "b"}}
	if got := err.Error(); got != `invalid source "nope": unknown source, valid options are: [a, b]` {
		t.Errorf("Unexpected message: %s", got)
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := error(&FetchError{Source: "s", URL: "http://x", Err: inner})
	if !errors.Is(err, inner) {
		t.Error("Expected FetchError to unwrap to its cause")
	}
}
