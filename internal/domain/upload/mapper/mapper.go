// Package mapper classifies raw workbook rows and maps the accepted ones
// into booking records. Column letters are a hard contract with the
// reconciliation spreadsheet template and must not change.
package mapper

import (
	"strconv"
	"strings"

	"github.com/hotelops/ota-reconciliation/internal/domain/booking"
	"github.com/hotelops/ota-reconciliation/internal/domain/upload/parser"
)

// Spreadsheet template column letters
const (
	colConfirmationNumber        = "A"
	colHotelName                 = "D"
	colCountry                   = "F"
	colGuestName                 = "H"
	colArrivalDate               = "M"
	colDepartureDate             = "N"
	colRoomNights                = "R"
	colStatus                    = "S"
	colBookingType               = "T"
	colChannel                   = "AR"
	colChannelConfirmationNumber = "AS"
	colChannelInvoicing          = "AY"
	colNetAmount                 = "CN"
)

// The two invoicing categories for which the operator manages channel
// payments. Compared after trimming and lower-casing.
const (
	invoicingHotelLiable = "zuzu manages channel payments, hotel liable for these payments"
	invoicingZuzuLiable  = "zuzu manages channel payments, zuzu liable for these payments"
)

// rejectedKeySampleSize caps the confirmation-number examples shown to the
// user for filtered-out rows
const rejectedKeySampleSize = 4

// Result is the outcome of classifying and mapping one sheet
type Result struct {
	// Accepted holds the mapped records that passed both predicates and
	// were not empty after mapping.
	Accepted []*booking.Booking
	// TotalRows is the number of data rows in the sheet
	TotalRows int
	// RejectedCount is the number of rows failing the business-rule filter
	RejectedCount int
	// EmptyCount is the number of rows that mapped to a fully empty record
	EmptyCount int
	// RejectedKeySample holds up to four distinct confirmation numbers from
	// rejected or empty rows, for the user-facing summary.
	RejectedKeySample []string
}

// Accept reports whether a row passes the import filter: booking type
// "regular" and an invoicing category the operator manages payments for.
func Accept(row parser.Row) bool {
	bookingType := strings.ToLower(strings.TrimSpace(row[colBookingType]))
	invoicing := strings.ToLower(strings.TrimSpace(row[colChannelInvoicing]))
	return bookingType == "regular" &&
		(invoicing == invoicingHotelLiable || invoicing == invoicingZuzuLiable)
}

// MapRow maps an accepted row into a booking record. Currency stays nil;
// the normalizer fills it from the country lookup.
func MapRow(row parser.Row) *booking.Booking {
	return &booking.Booking{
		ZuzuRoomConfirmationNumber:       parseInt(row[colConfirmationNumber]),
		HotelName:                        stringOrNil(row[colHotelName]),
		Country:                          stringOrNil(row[colCountry]),
		Name:                             stringOrNil(row[colGuestName]),
		ArrivalDate:                      NormalizeDate(row[colArrivalDate]),
		DepartureDate:                    NormalizeDate(row[colDepartureDate]),
		NumberOfRoomNights:               parseIntSmall(row[colRoomNights]),
		Status:                           stringOrNil(row[colStatus]),
		Channel:                          stringOrNil(row[colChannel]),
		ChannelBookingConfirmationNumber: parseInt(row[colChannelConfirmationNumber]),
		ZuzuManagingChannelInvoicing:     stringOrNil(row[colChannelInvoicing]),
		NetAmountByZuzu:                  booking.ParseAmount(row[colNetAmount]),
	}
}

// Map classifies every row and maps the accepted ones
func Map(rows []parser.Row) Result {
	result := Result{TotalRows: len(rows)}
	seenKeys := make(map[string]struct{})

	sampleKey := func(row parser.Row) {
		key := strings.TrimSpace(row[colConfirmationNumber])
		if key == "" || len(result.RejectedKeySample) >= rejectedKeySampleSize {
			return
		}
		if _, ok := seenKeys[key]; ok {
			return
		}
		seenKeys[key] = struct{}{}
		result.RejectedKeySample = append(result.RejectedKeySample, key)
	}

	for _, row := range rows {
		if !Accept(row) {
			result.RejectedCount++
			sampleKey(row)
			continue
		}
		record := MapRow(row)
		if isEmpty(record) {
			result.EmptyCount++
			sampleKey(row)
			continue
		}
		result.Accepted = append(result.Accepted, record)
	}
	return result
}

func isEmpty(b *booking.Booking) bool {
	return b.ZuzuRoomConfirmationNumber == nil &&
		b.HotelName == nil && b.Country == nil && b.Name == nil &&
		b.ArrivalDate == nil && b.DepartureDate == nil &&
		b.NumberOfRoomNights == nil && b.Status == nil && b.Channel == nil &&
		b.ChannelBookingConfirmationNumber == nil &&
		b.ZuzuManagingChannelInvoicing == nil && b.NetAmountByZuzu == nil
}

func stringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseInt(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func parseIntSmall(s string) *int {
	n := parseInt(s)
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}
