package model

import "time"

// Service is a bookable offering owned by a provider.
type Service struct {
	ID          int64     `db:"id" json:"id"`
	ProviderID  int64     `db:"provider_id" json:"provider_id"`
	LocationID  *int64    `db:"location_id" json:"location_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Price       float64   `db:"price" json:"price"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ServiceView is a service joined with its provider and location names.
type ServiceView struct {
	Service
	ProviderName *string `db:"provider_name" json:"provider_name,omitempty"`
	LocationName *string `db:"location_name" json:"location_name"`
}

// Location is where a service takes place.
type Location struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address"`
}

type CreateServiceRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	LocationID  *int64   `json:"location_id" binding:"omitempty,gt=0"`
}
