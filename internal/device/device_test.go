package device

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestFind(t *testing.T) {
	devices := []Device{
		{Label: "SDCARD", MountPath: "/media/user/SDCARD"},
		{Label: "Canon EOS", MountPath: "/media/user/Canon EOS"},
	}

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{
			name: "match by label",
			key:  "SDCARD",
			want: "/media/user/SDCARD",
		},
		{
			name: "label match is case-insensitive",
			key:  "sdcard",
			want: "/media/user/SDCARD",
		},
		{
			name: "match by mount path",
			key:  "/media/user/Canon EOS",
			want: "/media/user/Canon EOS",
		},
		{
			name:    "no match",
			key:     "GOPRO",
			wantErr: true,
		},
		{
			name:    "empty key",
			key:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Find(devices, tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Find(%q) expected error, got %+v", tt.key, got)
				}
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("Find(%q) error = %v, want ErrNotFound", tt.key, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Find(%q) unexpected error: %v", tt.key, err)
			}
			if got.MountPath != tt.want {
				t.Errorf("Find(%q).MountPath = %q, want %q", tt.key, got.MountPath, tt.want)
			}
		})
	}
}

func TestFind_EmptyDeviceList(t *testing.T) {
	_, err := Find(nil, "SDCARD")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Find on empty list error = %v, want ErrNotFound", err)
	}
}

func TestNew_ReturnsScanner(t *testing.T) {
	if New() == nil {
		t.Fatal("New() returned nil scanner")
	}
}
