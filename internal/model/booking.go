package model

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
)

// Booking is a customer's reservation of one slot.
// AvailabilityID is nil only for rows created before bookings referenced slots directly.
type Booking struct {
	ID             int64         `db:"id" json:"id"`
	CustomerID     int64         `db:"customer_id" json:"customer_id"`
	ServiceID      int64         `db:"service_id" json:"service_id"`
	AvailabilityID *int64        `db:"availability_id" json:"availability_id"`
	Date           Date          `db:"date" json:"date"`
	Status         BookingStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// CustomerBookingView is a booking as listed for its customer.
type CustomerBookingView struct {
	Booking
	ServiceName  string  `db:"service_name" json:"service_name"`
	Description  string  `db:"description" json:"description"`
	Price        float64 `db:"price" json:"price"`
	StartTime    *string `db:"start_time" json:"start_time"`
	EndTime      *string `db:"end_time" json:"end_time"`
	ProviderName string  `db:"provider_name" json:"provider_name"`
}

// AppointmentView is a booking as listed for the provider of its service.
type AppointmentView struct {
	Booking
	ServiceName   string  `db:"service_name" json:"service_name"`
	Price         float64 `db:"price" json:"price"`
	StartTime     *string `db:"start_time" json:"start_time"`
	EndTime       *string `db:"end_time" json:"end_time"`
	CustomerName  string  `db:"customer_name" json:"customer_name"`
	CustomerEmail string  `db:"customer_email" json:"customer_email"`
}

type BookRequest struct {
	AvailabilityID int64 `json:"availability_id"`
}

type CancelRequest struct {
	BookingID int64 `json:"booking_id"`
}

type RescheduleRequest struct {
	BookingID         int64 `json:"booking_id"`
	NewAvailabilityID int64 `json:"new_availability_id"`
}

// BookResult is returned by a successful booking.
type BookResult struct {
	Booking *Booking    `json:"booking"`
	Slot    SlotSummary `json:"slot"`
}

// CancelledBooking describes a booking removed by cancellation.
type CancelledBooking struct {
	ID             int64  `json:"id"`
	ServiceID      int64  `json:"service_id"`
	Date           Date   `json:"date"`
	AvailabilityID *int64 `json:"availability_id"`
}

// OldSlotRef names the slot a rescheduled booking left.
type OldSlotRef struct {
	Date           Date   `json:"date"`
	AvailabilityID *int64 `json:"availability_id"`
}

// RescheduleResult is returned by a successful reschedule.
type RescheduleResult struct {
	Booking *Booking    `json:"booking"`
	OldSlot OldSlotRef  `json:"old_slot"`
	NewSlot SlotSummary `json:"new_slot"`
}
