package metrics

import (
	"errors"
	"testing"
)

func TestTypeName(t *testing.T) {
	typ, err := NewType("PUT", "success")
	if err != nil {
		t.Fatalf("NewType: %v", err)
	}
	if typ.Name() != "PUT-success" {
		t.Errorf("Name() = %q, want PUT-success", typ.Name())
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Type
		wantErr bool
	}{
		{name: "simple", input: "PUT-success", want: Type{Op: "PUT", Sample: "success"}},
		{name: "delimiter in sample", input: "GET-fail-timeout", want: Type{Op: "GET", Sample: "fail-timeout"}},
		{name: "no delimiter", input: "PUT", wantErr: true},
		{name: "empty op", input: "-success", wantErr: true},
		{name: "empty sample", input: "PUT-", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidType) {
					t.Fatalf("error = %v, want ErrInvalidType", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
			if got.Name() != tt.input {
				t.Errorf("round trip = %q, want %q", got.Name(), tt.input)
			}
		})
	}
}

func TestNewTypeRejects(t *testing.T) {
	tests := []struct {
		op, sample string
	}{
		{"", "success"},
		{"PUT-X", "success"},
		{"PUT", ""},
	}
	for _, tt := range tests {
		if _, err := NewType(tt.op, tt.sample); !errors.Is(err, ErrInvalidType) {
			t.Errorf("NewType(%q, %q) error = %v, want ErrInvalidType", tt.op, tt.sample, err)
		}
	}
}
