package handler

import "testing"

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"2021 - Smith - Trees - MBE.pdf", `attachment; filename="2021 - Smith - Trees - MBE.pdf"`},
		{"Müller.pdf", `attachment; filename="M_ller.pdf"; filename*=utf-8''M%C3%BCller.pdf`},
	}

	for _, tt := range tests {
		if got := contentDisposition(tt.name); got != tt.want {
			t.Errorf("contentDisposition(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
