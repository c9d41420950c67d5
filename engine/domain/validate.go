package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Injection patterns: script, SQL and template fragments that should never
// reach the engine or the datastore.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\bon(load|error|click)\s*=`),
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),
}

// Profanity word list (lowercase, basic set).
var profanityWords = map[string]bool{
	"fuck": true, "shit": true, "bitch": true,
	"cunt": true, "dick": true, "piss": true,
}

const (
	MinSymptomsLength = 10
	MaxSymptomsLength = 2000
	maxTitleLength    = 200
	maxNameLength     = 100
	maxNotesLength    = 2000
)

// Screen is the input-sanitization filter: it passes or rejects free text.
// It does not rewrite the text.
func Screen(field, text string) error {
	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError(field, text, ErrTextInjection)
		}
	}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		cleaned := strings.Trim(word, ".,!?;:'\"()-")
		if profanityWords[cleaned] {
			return NewValidationError(field, cleaned, ErrTextProfanity)
		}
	}
	return nil
}

// ValidateVehicle checks presence of make and model and the year bounds.
func ValidateVehicle(v Vehicle, now time.Time) error {
	if strings.TrimSpace(v.Make) == "" {
		return NewValidationError("make", v.Make, ErrMissingMake)
	}
	if strings.TrimSpace(v.Model) == "" {
		return NewValidationError("model", v.Model, ErrMissingModel)
	}
	if v.Year < MinModelYear || v.Year > MaxModelYear(now) {
		return NewValidationError("year", fmt.Sprintf("%d", v.Year), ErrYearOutOfRange)
	}
	return nil
}

// ValidateInput validates a diagnosis form submission at time now.
func ValidateInput(in DiagnosticInput, now time.Time) error {
	if err := ValidateVehicle(in.Vehicle, now); err != nil {
		return err
	}

	text := strings.TrimSpace(in.Symptoms)
	n := utf8.RuneCountInString(text)
	if n < MinSymptomsLength {
		return NewValidationError("symptoms", text, ErrSymptomsTooShort)
	}
	if n > MaxSymptomsLength {
		return NewValidationError("symptoms", fmt.Sprintf("%d runes", n), ErrSymptomsTooLong)
	}

	if strings.TrimSpace(in.IssueTitle) == "" {
		return NewValidationError("issue_title", in.IssueTitle, ErrMissingTitle)
	}
	if utf8.RuneCountInString(in.IssueTitle) > maxTitleLength {
		return NewValidationError("issue_title", in.IssueTitle, ErrFieldTooLong)
	}
	if !in.Severity.Valid() {
		return NewValidationError("severity", string(in.Severity), ErrInvalidSeverity)
	}
	if in.Urgency != "" && !ValidUrgencies[in.Urgency] {
		return NewValidationError("urgency", string(in.Urgency), ErrInvalidUrgency)
	}
	if utf8.RuneCountInString(in.CustomName) > maxNameLength {
		return NewValidationError("custom_name", in.CustomName, ErrFieldTooLong)
	}
	if utf8.RuneCountInString(in.Notes) > maxNotesLength {
		return NewValidationError("notes", fmt.Sprintf("%d runes", utf8.RuneCountInString(in.Notes)), ErrFieldTooLong)
	}

	for _, f := range []struct{ name, text string }{
		{"symptoms", in.Symptoms},
		{"issue_title", in.IssueTitle},
		{"custom_name", in.CustomName},
		{"notes", in.Notes},
	} {
		if err := Screen(f.name, f.text); err != nil {
			return err
		}
	}
	return nil
}
