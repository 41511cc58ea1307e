// Package booking defines the booking record, its column contract, and the
// derived-column formula engine shared by imports, edits, and undo.
package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking is a persisted hotel-booking reconciliation row. All business
// columns are optional; identity and system columns are set by the store.
type Booking struct {
	ID int64 `json:"id"`

	// Booking data from the spreadsheet import
	ZuzuRoomConfirmationNumber       *int64           `json:"zuzu_room_confirmation_number"`
	HotelName                        *string          `json:"hotel_name"`
	Country                          *string          `json:"country"`
	Name                             *string          `json:"name"`
	ArrivalDate                      *time.Time       `json:"arrival_date"`
	DepartureDate                    *time.Time       `json:"departure_date"`
	NumberOfRoomNights               *int             `json:"number_of_room_nights"`
	Status                           *string          `json:"status"`
	Channel                          *string          `json:"channel"`
	ChannelBookingConfirmationNumber *int64           `json:"channel_booking_confirmation_number"`
	ZuzuManagingChannelInvoicing     *string          `json:"zuzu_managing_channel_invoicing"`
	NetAmountByZuzu                  *decimal.Decimal `json:"net_amount_by_zuzu"`
	Currency                         *string          `json:"currency"`

	// Reconciliation columns, editable after import
	NetOfChannelCommissionAmount *decimal.Decimal `json:"net_of_channel_commissio_amount_extranet"`
	PaymentRequestDate           *time.Time       `json:"payment_request_date"`
	TotalAmountSubmitted         *decimal.Decimal `json:"total_amount_submitted"`
	AmountReceived               *decimal.Decimal `json:"amount_received"`
	TotalAmountReceived          *decimal.Decimal `json:"total_amount_received"`
	PaymentDate                  *time.Time       `json:"payment_date"`
	TransmissionQueueID          *string          `json:"transmission_queue_id"`
	ReferenceNumber              *string          `json:"reference_number"`
	Remarks                      *string          `json:"remarks"`

	// Derived columns, recomputed on every write to their inputs
	Balance               *decimal.Decimal `json:"balance"`
	ReconciledAmountCheck *decimal.Decimal `json:"reconciled_amount_check"`

	// System columns
	UploadID  *int64    `json:"upload_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Column kind allow-lists. Any by-name column access goes through these;
// there is no reflection-based field lookup.
var (
	editableColumns = map[string]struct{}{
		"net_of_channel_commissio_amount_extranet": {},
		"payment_request_date":                     {},
		"total_amount_submitted":                   {},
		"amount_received":                          {},
		"total_amount_received":                    {},
		"payment_date":                             {},
		"transmission_queue_id":                    {},
		"reference_number":                         {},
		"remarks":                                  {},
	}

	numericColumns = map[string]struct{}{
		"net_of_channel_commissio_amount_extranet": {},
		"total_amount_submitted":                   {},
		"amount_received":                          {},
		"total_amount_received":                    {},
	}

	dateColumns = map[string]struct{}{
		"payment_request_date": {},
		"payment_date":         {},
	}

	formulaColumns = map[string]struct{}{
		"balance":                 {},
		"reconciled_amount_check": {},
	}

	systemColumns = map[string]struct{}{
		"id":         {},
		"upload_id":  {},
		"created_at": {},
		"updated_at": {},
	}
)

// IsEditable reports whether a column may be written by manual edits.
// Formula columns, currency (derived from the country lookup), and system
// columns are never editable.
func IsEditable(column string) bool {
	_, ok := editableColumns[column]
	return ok
}

// IsFormula reports whether a column is derived
func IsFormula(column string) bool {
	_, ok := formulaColumns[column]
	return ok
}

// IsSystem reports whether a column is store-managed
func IsSystem(column string) bool {
	_, ok := systemColumns[column]
	return ok
}

// IsNumericEditable reports whether an editable column holds an amount
func IsNumericEditable(column string) bool {
	_, ok := numericColumns[column]
	return ok
}

// IsDateEditable reports whether an editable column holds a calendar date
func IsDateEditable(column string) bool {
	_, ok := dateColumns[column]
	return ok
}

// EditableColumns returns the editable column names in table order
func EditableColumns() []string {
	return []string{
		"net_of_channel_commissio_amount_extranet",
		"payment_request_date",
		"total_amount_submitted",
		"amount_received",
		"total_amount_received",
		"payment_date",
		"transmission_queue_id",
		"reference_number",
		"remarks",
	}
}

var displayNames = map[string]string{
	"net_of_channel_commissio_amount_extranet": "Net (of channel commission) amount (Extranet)",
	"payment_request_date":                     "Payment Request Date",
	"total_amount_submitted":                   "Total Amount Submitted",
	"amount_received":                          "Amount Received",
	"total_amount_received":                    "Total Amount Received",
	"payment_date":                             "Payment Date",
	"balance":                                  "Balance",
	"reconciled_amount_check":                  "Reconciled amount Check",
	"transmission_queue_id":                    "Transmission Queue ID",
	"reference_number":                         "Reference Number",
	"remarks":                                  "Remarks",
}

// DisplayName returns the human-readable column title
func DisplayName(column string) string {
	if name, ok := displayNames[column]; ok {
		return name
	}
	return column
}
