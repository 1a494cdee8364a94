package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"offer-tracker/internal/models"
)

var (
	uuidRegex  = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

const (
	maxCaseNumberLength = 64
	maxLabelLength      = 50
	maxNotesLength      = 5000
	maxDailyGoal        = 1000
)

// Allowed enumerations for appearance settings.
var (
	Themes    = []string{"light", "dark", "system"}
	FontSizes = []string{"small", "medium", "large"}
	Densities = []string{"compact", "comfortable", "spacious"}
	Views     = []string{"week", "month", "quarter", "year"}
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// ValidateOfferInput checks the fields of a new offer.
func ValidateOfferInput(in models.OfferInput) error {
	if err := validateCaseNumber(in.CaseNumber); err != nil {
		return err
	}
	if err := validateLabel(in.Channel, "channel"); err != nil {
		return err
	}
	if err := validateLabel(in.OfferType, "offerType"); err != nil {
		return err
	}
	if len(in.Notes) > maxNotesLength {
		return &ValidationError{Field: "notes", Message: fmt.Sprintf("cannot exceed %d characters", maxNotesLength)}
	}
	if in.CSAT != "" && !in.CSAT.Valid() {
		return &ValidationError{Field: "csat", Message: "must be one of positive, neutral, negative"}
	}
	if len(in.CSATComment) > maxNotesLength {
		return &ValidationError{Field: "csatComment", Message: fmt.Sprintf("cannot exceed %d characters", maxNotesLength)}
	}
	return nil
}

// ValidateOfferUpdate checks the fields present in a partial update.
func ValidateOfferUpdate(u models.OfferUpdate) error {
	if v, ok := u.CaseNumber.Get(); ok {
		if err := validateCaseNumber(v); err != nil {
			return err
		}
	} else if u.CaseNumber.Cleared() {
		return &ValidationError{Field: "caseNumber", Message: "cannot be cleared"}
	}

	if v, ok := u.Channel.Get(); ok {
		if err := validateLabel(v, "channel"); err != nil {
			return err
		}
	} else if u.Channel.Cleared() {
		return &ValidationError{Field: "channel", Message: "cannot be cleared"}
	}

	if v, ok := u.OfferType.Get(); ok {
		if err := validateLabel(v, "offerType"); err != nil {
			return err
		}
	} else if u.OfferType.Cleared() {
		return &ValidationError{Field: "offerType", Message: "cannot be cleared"}
	}

	if v, ok := u.Notes.Get(); ok && len(v) > maxNotesLength {
		return &ValidationError{Field: "notes", Message: fmt.Sprintf("cannot exceed %d characters", maxNotesLength)}
	}
	if v, ok := u.CSAT.Get(); ok && v != "" && !v.Valid() {
		return &ValidationError{Field: "csat", Message: "must be one of positive, neutral, negative"}
	}
	if v, ok := u.CSATComment.Get(); ok && len(v) > maxNotesLength {
		return &ValidationError{Field: "csatComment", Message: fmt.Sprintf("cannot exceed %d characters", maxNotesLength)}
	}
	return nil
}

// ValidateDailyGoal requires a goal of at least one.
func ValidateDailyGoal(goal int) error {
	if goal < 1 {
		return &ValidationError{Field: "dailyGoal", Message: "must be at least 1"}
	}
	if goal > maxDailyGoal {
		return &ValidationError{Field: "dailyGoal", Message: fmt.Sprintf("cannot exceed %d", maxDailyGoal)}
	}
	return nil
}

// ValidateWorkdays requires a non-empty set of day-of-week indices 0-6.
func ValidateWorkdays(days []int) error {
	if len(days) == 0 {
		return &ValidationError{Field: "workdays", Message: "at least one workday is required"}
	}
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return &ValidationError{Field: "workdays", Message: fmt.Sprintf("invalid day index %d", d)}
		}
		if seen[d] {
			return &ValidationError{Field: "workdays", Message: fmt.Sprintf("duplicate day index %d", d)}
		}
		seen[d] = true
	}
	return nil
}

// ValidateDayIndex checks a single day-of-week index.
func ValidateDayIndex(day int) error {
	if day < 0 || day > 6 {
		return &ValidationError{Field: "day", Message: "must be between 0 (Sunday) and 6 (Saturday)"}
	}
	return nil
}

// ValidateLabel checks a channel or offer type name.
func ValidateLabel(label, field string) error {
	return validateLabel(label, field)
}

// ValidateClock checks an "HH:MM" reminder time.
func ValidateClock(clock, field string) error {
	if !clockRegex.MatchString(clock) {
		return &ValidationError{Field: field, Message: "must be HH:MM"}
	}
	return nil
}

// ValidateOneOf checks value against an enumeration.
func ValidateOneOf(value, field string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")),
	}
}

func validateCaseNumber(caseNumber string) error {
	caseNumber = SanitizeString(caseNumber)
	if caseNumber == "" {
		return &ValidationError{Field: "caseNumber", Message: "is required"}
	}
	if len(caseNumber) > maxCaseNumberLength {
		return &ValidationError{Field: "caseNumber", Message: fmt.Sprintf("cannot exceed %d characters", maxCaseNumberLength)}
	}
	return nil
}

func validateLabel(label, field string) error {
	label = SanitizeString(label)
	if label == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if len(label) > maxLabelLength {
		return &ValidationError{Field: field, Message: fmt.Sprintf("cannot exceed %d characters", maxLabelLength)}
	}
	return nil
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

func ValidateUUID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	id = SanitizeString(id)

	if !uuidRegex.MatchString(strings.ToLower(id)) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a valid UUID v4",
		}
	}

	return nil
}
