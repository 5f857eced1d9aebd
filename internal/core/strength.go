package core

import "regexp"

// Strength levels for a scored password.
const (
	StrengthWeak   = "weak"
	StrengthMedium = "medium"
	StrengthStrong = "strong"
)

// MinRegistrationScore is the minimum strength score accepted at signup.
const MinRegistrationScore = 3

// PasswordStrength is the result of scoring a candidate password.
// Feedback enumerates every unmet criterion for form display.
type PasswordStrength struct {
	Score    int
	Level    string
	Feedback []string
}

var (
	lowerClass   = regexp.MustCompile(`[a-z]`)
	upperClass   = regexp.MustCompile(`[A-Z]`)
	digitClass   = regexp.MustCompile(`[0-9]`)
	specialClass = regexp.MustCompile(`[^A-Za-z0-9]`)
	weakPattern  = regexp.MustCompile(`(?i)123|abc|qwe|password`)
)

// hasRepeatRun reports whether any rune appears 3+ times in a row.
func hasRepeatRun(s string) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= 3 {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// ScorePassword rates a password. Length >= 8 earns 2 points (plus 1 more
// at >= 12), each character class present earns 1, a character repeated 3+
// times in a row costs 1, and a common weak sequence costs 2.
func ScorePassword(password string) PasswordStrength {
	if password == "" {
		return PasswordStrength{Level: StrengthWeak, Feedback: []string{"at least 8 characters"}}
	}

	var score int
	var feedback []string

	if len(password) >= 8 {
		score += 2
	} else {
		feedback = append(feedback, "at least 8 characters")
	}
	if len(password) >= 12 {
		score++
	}

	checks := []struct {
		re   *regexp.Regexp
		want string
	}{
		{lowerClass, "lowercase letter"},
		{upperClass, "uppercase letter"},
		{digitClass, "number"},
		{specialClass, "special character"},
	}
	for _, c := range checks {
		if c.re.MatchString(password) {
			score++
		} else {
			feedback = append(feedback, c.want)
		}
	}

	if hasRepeatRun(password) {
		score--
	}
	if weakPattern.MatchString(password) {
		score -= 2
	}

	level := StrengthStrong
	switch {
	case score < 3:
		level = StrengthWeak
	case score < 6:
		level = StrengthMedium
	}

	return PasswordStrength{Score: score, Level: level, Feedback: feedback}
}
