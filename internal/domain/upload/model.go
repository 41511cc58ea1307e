// Package upload coordinates spreadsheet imports: parsing, classification,
// duplicate detection, normalization, and the batched insert with
// compensating rollback. It also manages upload-batch records after import.
package upload

import (
	"time"

	"github.com/hotelops/ota-reconciliation/internal/domain/booking"
)

// Upload is one completed import batch
type Upload struct {
	ID              int64      `json:"id"`
	FileName        string     `json:"file_name"`
	SheetName       string     `json:"sheet_name"`
	RowsUploaded    int        `json:"rows_uploaded"`
	UploadedBy      string     `json:"uploaded_by"`
	UploadedAt      time.Time  `json:"uploaded_at"`
	ArrivalDateMin  *time.Time `json:"arrival_date_min"`
	ArrivalDateMax  *time.Time `json:"arrival_date_max"`
	BookingIDs      []int64    `json:"booking_ids"`
	FileStoragePath *string    `json:"file_storage_path"`
	CancelledAt     *time.Time `json:"cancelled_at"`
}

// Summary is the user-facing outcome of a completed import
type Summary struct {
	UploadID       int64    `json:"upload_id"`
	TotalRows      int      `json:"total_rows"`
	Inserted       int      `json:"inserted"`
	AlreadyPresent int      `json:"already_present"`
	FilteredOut    int      `json:"filtered_out"`
	FilteredOutKey []string `json:"filtered_out_examples,omitempty"`
}

// Decision is returned when duplicate keys suspend an import pending an
// explicit user choice.
type Decision struct {
	ImportID       string   `json:"import_id"`
	TotalRows      int      `json:"total_rows"`
	FilteredOut    int      `json:"filtered_out"`
	AlreadyPresent int      `json:"already_present"`
	ToImport       int      `json:"to_import"`
	DuplicateKeys  []int64  `json:"duplicate_keys"`
	FilteredOutKey []string `json:"filtered_out_examples,omitempty"`
}

// Outcome is the result of starting an import: either a finished summary or
// a pending decision, never both.
type Outcome struct {
	Summary  *Summary  `json:"summary,omitempty"`
	Decision *Decision `json:"decision,omitempty"`
}

// candidateKeys returns the non-nil confirmation numbers of the records
func candidateKeys(records []*booking.Booking) []int64 {
	keys := make([]int64, 0, len(records))
	for _, r := range records {
		if r.ZuzuRoomConfirmationNumber != nil {
			keys = append(keys, *r.ZuzuRoomConfirmationNumber)
		}
	}
	return keys
}
