package model

import "time"

// Slot is one bookable unit of a provider's availability for a service.
type Slot struct {
	ID          int64     `db:"id" json:"id"`
	ServiceID   int64     `db:"service_id" json:"service_id"`
	ProviderID  int64     `db:"provider_id" json:"provider_id"`
	Date        Date      `db:"date" json:"date"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ProviderSlotView is a provider's own slot joined with service data.
type ProviderSlotView struct {
	Slot
	ServiceName string  `db:"service_name" json:"service_name"`
	Price       float64 `db:"price" json:"price"`
}

// PublicSlotView is an open slot as shown to customers.
type PublicSlotView struct {
	Slot
	ServiceName  string  `db:"service_name" json:"service_name"`
	Description  string  `db:"description" json:"description"`
	Price        float64 `db:"price" json:"price"`
	ProviderName string  `db:"provider_name" json:"provider_name"`
}

// SlotFilter narrows the public slot listing. Zero values mean "any".
type SlotFilter struct {
	ServiceID *int64
	Date      *Date
}

type PublishSlotRequest struct {
	ServiceID   int64  `json:"service_id"`
	Date        string `json:"date" binding:"omitempty,datetime=2006-01-02"`
	StartTime   string `json:"start_time" binding:"omitempty,clock"`
	EndTime     string `json:"end_time" binding:"omitempty,clock"`
	IsAvailable *bool  `json:"is_available"`
}

// SlotSummary is the slot excerpt returned with booking results.
type SlotSummary struct {
	ID        int64  `json:"id"`
	Date      Date   `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (s *Slot) Summary() SlotSummary {
	return SlotSummary{
		ID:        s.ID,
		Date:      s.Date,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
	}
}
