package platform

import "testing"

func TestVKCode(t *testing.T) {
	tests := []struct {
		key     string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"k", 0x4B, false},
		{"K", 0x4B, false},
		{"0", 0x30, false},
		{"f12", 0x7B, false},
		{"enter", 0x0D, false},
		{"pagedown", 0x22, false},
		{"hyper", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := VKCode(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("VKCode(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("VKCode(%q) = %#x, want %#x", tt.key, got, tt.want)
			}
		})
	}
}
