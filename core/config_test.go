package core

import "testing"

func TestUploadConfig_Limit(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int64
		want    int64
	}{
		{name: "unset", maxSize: 0, want: MaxUploadSize},
		{name: "negative", maxSize: -5, want: MaxUploadSize},
		{name: "above the cap", maxSize: 1 << 30, want: MaxUploadSize},
		{name: "at the cap", maxSize: MaxUploadSize, want: MaxUploadSize},
		{name: "below the cap", maxSize: 1024, want: 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (UploadConfig{MaxSize: tt.maxSize}).Limit(); got != tt.want {
				t.Errorf("Limit() = %d, want %d", got, tt.want)
			}
		})
	}
}
