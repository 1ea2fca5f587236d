package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/slotbook/booking-api/internal/repository"
)

type systemRepository struct {
	BaseRepository
}

func NewSystemRepository(base BaseRepository) repository.SystemRepository {
	return &systemRepository{base}
}

func (r *systemRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", mapError(err))
	}
	return nil
}

func (r *systemRepository) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name
	`

	var tables []string
	if err := r.db.SelectContext(ctx, &tables, query); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", mapError(err))
	}
	return tables, nil
}

// Store is the PostgreSQL-backed repository.Store.
type Store struct {
	BaseRepository
	users    repository.UserRepository
	services repository.ServiceRepository
	slots    repository.SlotRepository
	bookings repository.BookingRepository
	outbox   repository.OutboxRepository
	system   repository.SystemRepository
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	base := NewBaseRepository(db)
	return &Store{
		BaseRepository: base,
		users:          NewUserRepository(base),
		services:       NewServiceRepository(base),
		slots:          NewSlotRepository(base),
		bookings:       NewBookingRepository(base),
		outbox:         NewOutboxRepository(base),
		system:         NewSystemRepository(base),
	}
}

func (s *Store) Users() repository.UserRepository       { return s.users }
func (s *Store) Services() repository.ServiceRepository { return s.services }
func (s *Store) Slots() repository.SlotRepository       { return s.slots }
func (s *Store) Bookings() repository.BookingRepository { return s.bookings }
func (s *Store) Outbox() repository.OutboxRepository    { return s.outbox }
func (s *Store) System() repository.SystemRepository    { return s.system }

func (s *Store) Close() error {
	return s.db.Close()
}
