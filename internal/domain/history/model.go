// Package history records column-level edit diffs and supports reverting
// them. Imports are not logged; only manual edits are.
package history

import "time"

// Entry is one logged cell edit
type Entry struct {
	ID         int64      `json:"id"`
	TableName  string     `json:"table_name"`
	RowID      int64      `json:"row_id"`
	ColumnName string     `json:"column_name"`
	OldValue   *string    `json:"old_value"`
	NewValue   *string    `json:"new_value"`
	EditedBy   string     `json:"edited_by"`
	EditedAt   time.Time  `json:"edited_at"`
	RowDisplay *string    `json:"row_display"`
	UndoneAt   *time.Time `json:"undone_at"`
	UndoneBy   *string    `json:"undone_by"`
}

// Undone reports whether the entry was already reverted
func (e *Entry) Undone() bool {
	return e.UndoneAt != nil
}
