package export

import (
	"encoding/json"
	"time"

	"expensetracker/internal/core"
)

type (
	jsonRecord struct {
		Date        core.Date     `json:"date"`
		Amount      core.Money    `json:"amount"`
		Category    core.Category `json:"category"`
		Description string        `json:"description"`
	}

	jsonRecordWithMetadata struct {
		ID string `json:"id"`
		jsonRecord
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
)

func toJSONRecord(e core.Expense) jsonRecord {
	return jsonRecord{
		Date:        e.Date,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
	}
}

func renderJSON(expenses []core.Expense, includeMetadata bool) ([]byte, error) {
	if includeMetadata {
		out := make([]jsonRecordWithMetadata, 0, len(expenses))
		for _, e := range expenses {
			out = append(out, jsonRecordWithMetadata{
				ID:         e.ID,
				jsonRecord: toJSONRecord(e),
				CreatedAt:  e.CreatedAt,
				UpdatedAt:  e.UpdatedAt,
			})
		}
		return json.MarshalIndent(out, "", "  ")
	}
	out := make([]jsonRecord, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toJSONRecord(e))
	}
	return json.MarshalIndent(out, "", "  ")
}
