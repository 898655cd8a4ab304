package repository

import (
	"context"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/pg"
)

// LeaseRepository is a read-only view over leases and their parties.
type LeaseRepository struct {
	*pg.DB
}

func NewLeaseRepository(db *pg.DB) *LeaseRepository {
	return &LeaseRepository{db}
}

// ListActiveOverlapping returns active leases whose tenancy overlaps
// [from, to], with tenant and property preloaded.
func (r *LeaseRepository) ListActiveOverlapping(ctx context.Context, from, to time.Time) ([]*model.LeaseContext, error) {
	var entities []*LeaseEntity
	err := r.Read(ctx).
		Preload("Tenant").
		Preload("Property").
		Where("status = ?", string(model.LeaseStatusActive)).
		Where("start_date <= ? AND end_date >= ?", to, from).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.LeaseContext, len(entities))
	for i, e := range entities {
		out[i] = toLeaseContext(e)
	}
	return out, nil
}
