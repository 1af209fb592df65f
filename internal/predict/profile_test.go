package predict

import "testing"

func TestUsernameFromEmail(t *testing.T) {
	cases := []struct {
		email string
		want  string
	}{
		{"casey@example.com", "casey"},
		{"Casey.Jones+league@example.com", "casey_jones_league"},
		{"ab@example.com", "forecaster_ab"},
		{"@example.com", "forecaster"},
		{"", "forecaster"},
		{"averyveryverylongaddressindeed@example.com", "averyveryverylongaddress"},
	}
	for _, tc := range cases {
		got := usernameFromEmail(tc.email)
		if got != tc.want {
			t.Fatalf("usernameFromEmail(%q) = %q, want %q", tc.email, got, tc.want)
		}
	}
}

func TestSanitizeUsernameBounds(t *testing.T) {
	got := sanitizeUsername("__Hype Train 9000!!__")
	if got != "hype_train_9000" {
		t.Fatalf("sanitizeUsername = %q", got)
	}
	if len(sanitizeUsername("averyveryveryverylongusernameover24chars")) > 24 {
		t.Fatalf("sanitized username exceeds 24 chars")
	}
}
