package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Food           Category = "Food"
	Transportation Category = "Transportation"
	Entertainment  Category = "Entertainment"
	Shopping       Category = "Shopping"
	Bills          Category = "Bills"
	Other          Category = "Other"

	// CategoryAll is the filter sentinel matching every category.
	CategoryAll Category = "All"
)

const (
	// MaxAmountCents is the largest accepted amount (amount < 1,000,000).
	MaxAmountCents = 100_000_000 - 1
	// MaxDescriptionLength is counted in runes after trimming.
	MaxDescriptionLength = 200

	dateLayout = "2006-01-02"
)

type (
	Category string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID          string    `json:"id"`
		Date        Date      `json:"date"`
		Amount      Money     `json:"amount"`
		Category    Category  `json:"category"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// Draft is an expense that has not been stored yet.
	Draft struct {
		Date        Date     `json:"date"`
		Amount      Money    `json:"amount"`
		Category    Category `json:"category"`
		Description string   `json:"description"`
	}

	// Patch holds the fields of an update; nil fields are left untouched.
	Patch struct {
		Date        *Date     `json:"date,omitempty"`
		Amount      *Money    `json:"amount,omitempty"`
		Category    *Category `json:"category,omitempty"`
		Description *string   `json:"description,omitempty"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("amount must be greater than 0")
	ErrAmountTooLarge     = errors.New("amount must be less than 1,000,000")
	ErrEmptyDescription   = errors.New("description is required")
	ErrDescriptionTooLong = fmt.Errorf("description must be at most %d characters", MaxDescriptionLength)
	ErrInvalidCategory    = errors.New("invalid category")
	ErrMissingID          = errors.New("missing id")
	ErrTimestampsInverted = errors.New("updatedAt before createdAt")
)

// ValidationError reports which field failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// Categories returns the fixed category set in display order.
func Categories() []Category {
	return []Category{Food, Transportation, Entertainment, Shopping, Bills, Other}
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	switch c {
	case Food, Transportation, Entertainment, Shopping, Bills, Other:
		return true
	}
	return false
}

// Rank is the category's position in the display order, -1 when unknown.
func (c Category) Rank() int {
	for i, v := range Categories() {
		if v == c {
			return i
		}
	}
	return -1
}

// ParseCategory matches s case-insensitively against the fixed set.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON overrides the promoted time.Time encoding with the date-only form.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Before and After compare calendar days only.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

func validateDescription(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func validateCategory(c Category) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, string(c))
	}
	return nil
}

// Normalize trims the description.
func (d Draft) Normalize() Draft {
	d.Description = strings.TrimSpace(d.Description)
	return d
}

func (d Draft) Validate() error {
	if err := d.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	if err := d.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if err := validateCategory(d.Category); err != nil {
		return invalid("category", err)
	}
	if err := validateDescription(d.Description); err != nil {
		return invalid("description", err)
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Date == nil && p.Amount == nil && p.Category == nil && p.Description == nil
}

// Validate checks only the fields that are present.
func (p Patch) Validate() error {
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return invalid("date", err)
		}
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return invalid("amount", err)
		}
	}
	if p.Category != nil {
		if err := validateCategory(*p.Category); err != nil {
			return invalid("category", err)
		}
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return invalid("description", err)
		}
	}
	return nil
}

// Apply merges the patch into e. ID and CreatedAt are never touched.
func (p Patch) Apply(e Expense) Expense {
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	return e
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return invalid("id", ErrMissingID)
	}
	if err := e.Draft().Validate(); err != nil {
		return err
	}
	if e.UpdatedAt.Before(e.CreatedAt) {
		return invalid("updatedAt", ErrTimestampsInverted)
	}
	return nil
}

// Draft returns the user-entered part of the expense.
func (e Expense) Draft() Draft {
	return Draft{
		Date:        e.Date,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
	}
}
