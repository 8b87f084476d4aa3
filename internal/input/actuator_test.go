package input

import "testing"

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"standard", BackendStandard, false},
		{"toggle", BackendToggle, false},
		{"scaled", BackendScaled, false},
		{"", BackendStandard, false},
		{"sendkeys", BackendStandard, true},
		{"Standard", BackendStandard, true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBackend(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBackend(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	if _, err := New(Backend("remote"), Options{}); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

func TestNew_BackendsConstruct(t *testing.T) {
	for _, b := range []Backend{BackendStandard, BackendToggle, BackendScaled} {
		a, err := New(b, Options{})
		if err != nil {
			t.Errorf("New(%q) failed: %v", b, err)
		}
		if a == nil {
			t.Errorf("New(%q) returned a nil actuator", b)
		}
	}
}
