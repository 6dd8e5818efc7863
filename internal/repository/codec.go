package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"expensetracker/internal/core"
)

// StorageKey is where the whole collection is kept in the blob store.
const StorageKey = "expense-tracker-data"

const formatVersion = 1

// ErrCorrupt means the stored payload could not be decoded.
var ErrCorrupt = errors.New("stored expenses are corrupt")

// Version 1 layout:
//
//	{"version":1,"expenses":[{"id":"…","date":"2024-12-15","amount":45.99,
//	  "category":"Food","description":"…","createdAt":"…","updatedAt":"…"}]}
//
// Version 0 is a bare array of the same records with dates written as full
// ISO timestamps.
type envelope struct {
	Version  int            `json:"version"`
	Expenses []core.Expense `json:"expenses"`
}

type storedEnvelope struct {
	Version  *int            `json:"version"`
	Expenses []storedExpense `json:"expenses"`
}

type storedExpense struct {
	ID          string     `json:"id"`
	Date        string     `json:"date"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// decoded is the result of reading a payload. Coerced lists the ids whose
// category was unknown and replaced by Other.
type decoded struct {
	Version  int
	Expenses []core.Expense
	Coerced  []string
}

func encode(expenses []core.Expense) ([]byte, error) {
	if expenses == nil {
		expenses = []core.Expense{}
	}
	b, err := json.Marshal(envelope{Version: formatVersion, Expenses: expenses})
	if err != nil {
		return nil, fmt.Errorf("encode expenses: %w", err)
	}
	return b, nil
}

func decode(data []byte) (decoded, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return decoded{Version: formatVersion}, nil
	}

	var (
		records []storedExpense
		version int
	)
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &records); err != nil {
			return decoded{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	case '{':
		var env storedEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return decoded{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if env.Version == nil || *env.Version != formatVersion {
			return decoded{}, fmt.Errorf("%w: unsupported version", ErrCorrupt)
		}
		records, version = env.Expenses, *env.Version
	default:
		return decoded{}, fmt.Errorf("%w: unexpected payload", ErrCorrupt)
	}

	out := decoded{Version: version, Expenses: make([]core.Expense, 0, len(records))}
	for i, r := range records {
		e, coerced, err := r.expense()
		if err != nil {
			return decoded{}, fmt.Errorf("%w: record %d: %v", ErrCorrupt, i, err)
		}
		if coerced {
			out.Coerced = append(out.Coerced, e.ID)
		}
		out.Expenses = append(out.Expenses, e)
	}
	return out, nil
}

func (r storedExpense) expense() (core.Expense, bool, error) {
	if strings.TrimSpace(r.ID) == "" {
		return core.Expense{}, false, core.ErrMissingID
	}
	date, err := decodeDate(r.Date)
	if err != nil {
		return core.Expense{}, false, err
	}

	coerced := false
	category := core.Category(r.Category)
	if !category.Valid() {
		if c, err := core.ParseCategory(r.Category); err == nil {
			category = c
		} else {
			category, coerced = core.Other, true
		}
	}

	return core.Expense{
		ID:          r.ID,
		Date:        date,
		Amount:      r.Amount,
		Category:    category,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, coerced, nil
}

// decodeDate accepts YYYY-MM-DD and full timestamps; a timestamp keeps the
// calendar day it names in UTC.
func decodeDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if len(s) == len("2006-01-02") {
		return core.ParseDate(s)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
	}
	return core.DateOf(t.UTC()), nil
}
