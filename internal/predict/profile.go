package predict

import (
	"context"
	"regexp"
	"strings"
)

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{3,24}$`)

// EnsureProfile upserts the forecaster profile row after a successful
// signup or login. Usernames fall back to the email local part when missing
// or malformed.
func (s *Service) EnsureProfile(ctx context.Context, userID, email, username string) error {
	if strings.TrimSpace(username) == "" {
		username = usernameFromEmail(email)
	}
	username = strings.TrimSpace(username)
	if !usernameRE.MatchString(username) {
		username = sanitizeUsername(usernameFromEmail(email))
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO predict.profiles (user_id, email, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
		    email = EXCLUDED.email,
		    username = CASE
		        WHEN predict.profiles.username = '' THEN EXCLUDED.username
		        ELSE predict.profiles.username
		    END
	`, userID, strings.TrimSpace(strings.ToLower(email)), username)
	return err
}

func usernameFromEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	parts := strings.Split(email, "@")
	if len(parts) == 0 || parts[0] == "" {
		return "forecaster"
	}
	return sanitizeUsername(parts[0])
}

func sanitizeUsername(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "forecaster"
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	res := strings.Trim(string(out), "_")
	if len(res) < 3 {
		res = "forecaster_" + res
	}
	if len(res) > 24 {
		res = res[:24]
	}
	return res
}
