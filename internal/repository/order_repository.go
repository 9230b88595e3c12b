package repository

import (
	"errors"
	"strings"

	"github.com/melodiemoment/api/internal/models"

	"gorm.io/gorm"
)

// OrderRepository order data access
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id string) (*models.Order, error)
	GetByOrderNumber(orderNumber string) (*models.Order, error)
	GetBySessionID(sessionID string) (*models.Order, error)
	GetByPaymentIntentID(paymentIntentID string) (*models.Order, error)
	ListByIDs(ids []string) ([]models.Order, error)
	ListAdmin(filter OrderListFilter) ([]models.Order, int64, error)
	ListUnprioritized(statuses []string, limit int) ([]models.Order, error)
	UpdateSessionID(id, sessionID string) error
	UpdateGuarded(id string, guard StatusGuard, updates map[string]interface{}) (bool, error)
	UpdatePriority(id string, update PriorityUpdate) error
}

// GormOrderRepository GORM implementation
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository.
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) withDeliverables(query *gorm.DB) *gorm.DB {
	return query.Preload("Deliverables", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at asc")
	})
}

func (r *GormOrderRepository) first(query *gorm.DB) (*models.Order, error) {
	var order models.Order
	if err := r.withDeliverables(query).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// Create inserts an order.
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// GetByID loads an order with its deliverables.
func (r *GormOrderRepository) GetByID(id string) (*models.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	return r.first(r.db.Where("id = ?", id))
}

// GetByOrderNumber loads an order by its public number.
func (r *GormOrderRepository) GetByOrderNumber(orderNumber string) (*models.Order, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, nil
	}
	return r.first(r.db.Where("order_number = ?", orderNumber))
}

// GetBySessionID loads the order bound to a checkout session.
func (r *GormOrderRepository) GetBySessionID(sessionID string) (*models.Order, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}
	return r.first(r.db.Where("stripe_session_id = ?", sessionID))
}

// GetByPaymentIntentID loads the order captured by a payment intent.
func (r *GormOrderRepository) GetByPaymentIntentID(paymentIntentID string) (*models.Order, error) {
	if strings.TrimSpace(paymentIntentID) == "" {
		return nil, nil
	}
	return r.first(r.db.Where("stripe_payment_intent_id = ?", paymentIntentID))
}

// ListByIDs loads orders by id; unknown ids are absent from the result.
func (r *GormOrderRepository) ListByIDs(ids []string) ([]models.Order, error) {
	var orders []models.Order
	if len(ids) == 0 {
		return orders, nil
	}
	if err := r.withDeliverables(r.db.Where("id IN ?", ids)).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListAdmin admin order list, newest first.
func (r *GormOrderRepository) ListAdmin(filter OrderListFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	query := r.db.Model(&models.Order{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		condition, argCount := buildLikeCondition(r.db, []string{"order_number", "recipient_name", "customer_email", "customer_name"})
		query = query.Where(condition, repeatLikeArgs("%"+search+"%", argCount)...)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListUnprioritized returns orders in the given statuses without a
// priority, oldest first.
func (r *GormOrderRepository) ListUnprioritized(statuses []string, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.Where("priority IS NULL OR priority = ''")
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Order("created_at asc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateSessionID stores the checkout session on a pending order.
func (r *GormOrderRepository) UpdateSessionID(id, sessionID string) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Update("stripe_session_id", sessionID).Error
}

// UpdateGuarded applies updates only when the row still matches guard.
// It reports false when another writer changed the row first.
func (r *GormOrderRepository) UpdateGuarded(id string, guard StatusGuard, updates map[string]interface{}) (bool, error) {
	query := r.db.Model(&models.Order{}).Where("id = ?", id)
	if guard.Status != "" {
		query = query.Where("status = ?", guard.Status)
	}
	if !guard.UpdatedAt.IsZero() {
		query = query.Where("updated_at = ?", guard.UpdatedAt)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdatePriority persists a triage result.
func (r *GormOrderRepository) UpdatePriority(id string, update PriorityUpdate) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(map[string]interface{}{
		"priority":           update.Priority,
		"priority_reasons":   models.StringArray(update.Reasons),
		"suggested_deadline": update.SuggestedDeadline,
		"updated_at":         update.UpdatedAt,
	}).Error
}
