package discovery

import (
	"reflect"
	"testing"
)

func TestInstance_String(t *testing.T) {
	inst := &Instance{
		Name:     "studio",
		Hostname: "studio.local.",
		IP:       "192.168.4.16",
		Port:     5555,
	}

	expected := "vtremote studio (studio.local.) at 192.168.4.16:5555"
	if inst.String() != expected {
		t.Errorf("Instance.String() = %v, want %v", inst.String(), expected)
	}
}

func TestInstance_Addr(t *testing.T) {
	tests := []struct {
		name     string
		inst     *Instance
		expected string
	}{
		{"ipv4", &Instance{IP: "10.0.0.5", Port: 5555}, "10.0.0.5:5555"},
		{"ipv6", &Instance{IP: "fe80::1", Port: 5555}, "[fe80::1]:5555"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inst.Addr(); got != tt.expected {
				t.Errorf("Instance.Addr() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestInstance_Metadata(t *testing.T) {
	inst := &Instance{
		Metadata: map[string]string{
			"version":      "1",
			"codecs":       "h264,hevc",
			"auth":         "1",
			"max_sessions": "8",
		},
	}

	if got := inst.Codecs(); !reflect.DeepEqual(got, []string{"h264", "hevc"}) {
		t.Errorf("Codecs() = %v, want [h264 hevc]", got)
	}
	if !inst.AuthRequired() {
		t.Error("AuthRequired() = false, want true")
	}
	if got := inst.MaxSessions(); got != 8 {
		t.Errorf("MaxSessions() = %d, want 8", got)
	}
	if got := inst.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q, want empty", got)
	}
}

func TestInstance_NilMetadata(t *testing.T) {
	inst := &Instance{}

	if got := inst.GetMetadata("version"); got != "" {
		t.Errorf("GetMetadata() with nil map = %q, want empty", got)
	}
	if inst.Codecs() != nil {
		t.Errorf("Codecs() = %v, want nil", inst.Codecs())
	}
	if inst.AuthRequired() {
		t.Error("AuthRequired() = true, want false")
	}
	if inst.MaxSessions() != 0 {
		t.Errorf("MaxSessions() = %d, want 0", inst.MaxSessions())
	}
}
