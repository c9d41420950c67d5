package report

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/WessleyAI/wessley-diagnostics/engine/domain"
)

const (
	maxCustomName = 100
	maxNotes      = 2000
	maxTags       = 10
	maxTagLength  = 32
)

// ErrEmptyUpdate is returned for an update that sets nothing.
var ErrEmptyUpdate = errors.New("report: update sets no fields")

// UpdateFields is a partial update of the user-editable fields. Nil means
// unchanged.
type UpdateFields struct {
	CustomName   *string              `json:"custom_name,omitempty"`
	Notes        *string              `json:"notes,omitempty"`
	Tags         *[]string            `json:"tags,omitempty"`
	RepairStatus *domain.RepairStatus `json:"repair_status,omitempty"`
	Bookmarked   *bool                `json:"is_bookmarked,omitempty"`
}

// IsEmpty reports whether u changes nothing.
func (u UpdateFields) IsEmpty() bool {
	return u.CustomName == nil && u.Notes == nil && u.Tags == nil &&
		u.RepairStatus == nil && u.Bookmarked == nil
}

// ValidateUpdate checks an update before it reaches the store. Text fields
// pass through the same screen as form input.
func ValidateUpdate(u UpdateFields) error {
	if u.IsEmpty() {
		return ErrEmptyUpdate
	}
	if u.CustomName != nil {
		if utf8.RuneCountInString(*u.CustomName) > maxCustomName {
			return domain.NewValidationError("custom_name", *u.CustomName, domain.ErrFieldTooLong)
		}
		if err := domain.Screen("custom_name", *u.CustomName); err != nil {
			return err
		}
	}
	if u.Notes != nil {
		if n := utf8.RuneCountInString(*u.Notes); n > maxNotes {
			return domain.NewValidationError("notes", fmt.Sprintf("%d runes", n), domain.ErrFieldTooLong)
		}
		if err := domain.Screen("notes", *u.Notes); err != nil {
			return err
		}
	}
	if u.Tags != nil {
		tags := *u.Tags
		if len(tags) > maxTags {
			return domain.NewValidationError("tags", fmt.Sprintf("%d tags", len(tags)), domain.ErrTooManyTags)
		}
		for _, t := range tags {
			if utf8.RuneCountInString(t) > maxTagLength {
				return domain.NewValidationError("tags", t, domain.ErrFieldTooLong)
			}
			if err := domain.Screen("tags", t); err != nil {
				return err
			}
		}
	}
	if u.RepairStatus != nil && !domain.ValidRepairStatuses[*u.RepairStatus] {
		return domain.NewValidationError("repair_status", string(*u.RepairStatus), domain.ErrInvalidStatus)
	}
	return nil
}

// NormalizeTags trims, drops empty and de-duplicates tags case-insensitively,
// keeping the first spelling.
func NormalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// ApplyUpdate applies u to r. It does not validate; call ValidateUpdate first.
func ApplyUpdate(r *DiagnosticResult, u UpdateFields) {
	if u.CustomName != nil {
		r.CustomName = strings.TrimSpace(*u.CustomName)
	}
	if u.Notes != nil {
		r.Notes = strings.TrimSpace(*u.Notes)
	}
	if u.Tags != nil {
		r.Tags = NormalizeTags(*u.Tags)
	}
	if u.RepairStatus != nil {
		r.RepairStatus = *u.RepairStatus
	}
	if u.Bookmarked != nil {
		r.Bookmarked = *u.Bookmarked
	}
}

// ApplyToRecord applies u to a stored row.
func ApplyToRecord(rec *Record, u UpdateFields) {
	if u.CustomName != nil {
		rec.CustomName = optional(strings.TrimSpace(*u.CustomName))
	}
	if u.Notes != nil {
		rec.Notes = optional(strings.TrimSpace(*u.Notes))
	}
	if u.Tags != nil {
		rec.Tags = NormalizeTags(*u.Tags)
	}
	if u.RepairStatus != nil {
		rec.RepairStatus = string(*u.RepairStatus)
	}
	if u.Bookmarked != nil {
		rec.Bookmarked = *u.Bookmarked
	}
}
