package cli

import "testing"

func TestSessionDisplay(t *testing.T) {
	tests := []struct {
		name string
		sess Session
		want string
	}{
		{"username set", Session{Username: "sharp_casey", Email: "casey@example.com"}, "sharp_casey"},
		{"username blank", Session{Username: "  ", Email: "casey@example.com"}, "casey@example.com"},
		{"no username", Session{Email: "casey@example.com"}, "casey@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.Display(); got != tt.want {
				t.Fatalf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}
