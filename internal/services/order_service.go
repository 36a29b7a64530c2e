// internal/services/order_service.go
package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gotchaguardian/payment-server/internal/apperrors"
	"github.com/gotchaguardian/payment-server/internal/catalog"
	"github.com/gotchaguardian/payment-server/internal/database"
	"github.com/gotchaguardian/payment-server/internal/models"
	"github.com/gotchaguardian/payment-server/internal/utils"
)

type OrderService struct {
	db      *gorm.DB
	catalog *catalog.Catalog
}

type CustomerInfo struct {
	Email   string `json:"email" validate:"required,email"`
	Name    string `json:"name" validate:"required,min=1,max=255"`
	Country string `json:"country,omitempty" validate:"omitempty,country_code"`
}

func NewOrderService(db *gorm.DB, cat *catalog.Catalog) *OrderService {
	return &OrderService{
		db:      db,
		catalog: cat,
	}
}

// CreateOrder opens a pending order for a catalog product. Amount and
// currency are copied from the catalog entry and never change afterwards.
func (s *OrderService) CreateOrder(productID string, customer *CustomerInfo) (*models.Order, error) {
	if err := utils.ValidateStruct(customer); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid customer details", err)
	}

	product, ok := s.catalog.Get(productID)
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "product %q not found", productID)
	}

	order := &models.Order{
		ProductID:       product.ID,
		CustomerEmail:   strings.ToLower(strings.TrimSpace(customer.Email)),
		CustomerName:    strings.TrimSpace(customer.Name),
		CustomerCountry: strings.ToUpper(customer.Country),
		Amount:          product.Price,
		Currency:        product.Currency,
		Status:          models.OrderStatusPending,
	}

	if err := s.db.Create(order).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to create order", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"product_id": order.ProductID,
	}).Info("Order created")

	return order, nil
}

// GetOrder returns an order only to the customer who owns it. The email
// check is case-insensitive and guards against order enumeration.
func (s *OrderService) GetOrder(orderID uuid.UUID, requestingEmail string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("ActivationKey").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "order not found")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load order", err)
	}

	if !strings.EqualFold(order.CustomerEmail, strings.TrimSpace(requestingEmail)) {
		return nil, apperrors.New(apperrors.KindForbidden, "email does not match order")
	}

	return &order, nil
}

// getByID loads an order without an ownership check. Internal use only;
// customer-facing reads go through GetOrder.
func (s *OrderService) getByID(orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("ActivationKey").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "order not found")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load order", err)
	}
	return &order, nil
}

// GetByProviderOrderID looks an order up by the payment provider's reference.
func (s *OrderService) GetByProviderOrderID(providerOrderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("ActivationKey").
		First(&order, "provider_order_id = ?", providerOrderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "no order for payment reference")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to load order", err)
	}
	return &order, nil
}

// Transition applies a status edge under a per-row lock. mutate runs
// inside the same transaction with the locked row, so key issuance and
// provider references commit atomically with the status change.
// Concurrent duplicate webhooks or capture callbacks serialize here.
func (s *OrderService) Transition(orderID uuid.UUID, next models.OrderStatus, mutate func(tx *gorm.DB, order *models.Order) error) (*models.Order, error) {
	var updated *models.Order

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var order models.Order
		if err := lockForUpdate(tx).First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.KindNotFound, "order not found")
			}
			return apperrors.Wrap(apperrors.KindInternal, "failed to lock order", err)
		}

		if !order.Status.CanTransitionTo(next) {
			return apperrors.Newf(apperrors.KindInvalidTransition,
				"cannot transition order from %s to %s", order.Status, next)
		}

		order.Status = next
		order.UpdatedAt = time.Now()

		if mutate != nil {
			if err := mutate(tx, &order); err != nil {
				return err
			}
		}

		if err := tx.Save(&order).Error; err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "failed to update order", err)
		}

		updated = &order
		return nil
	})

	if err != nil {
		logrus.WithFields(logrus.Fields{
			"order_id": orderID,
			"target":   next,
		}).WithError(err).Warn("Order transition rejected")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   next,
	}).Info("Order transitioned")

	return updated, nil
}

// Cancel moves a pending order to cancelled. Used by both the customer
// cancel callback and the admin endpoint.
func (s *OrderService) Cancel(orderID uuid.UUID) (*models.Order, error) {
	return s.Transition(orderID, models.OrderStatusCancelled, nil)
}

// ListOrders returns a paginated admin view.
func (s *OrderService) ListOrders(params utils.PaginationParams) ([]models.Order, int64, error) {
	query := s.db.Model(&models.Order{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(apperrors.KindInternal, "failed to count orders", err)
	}

	allowedSortFields := []string{"created_at", "amount", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, apperrors.Wrap(apperrors.KindInternal, "failed to fetch orders", err)
	}

	return orders, total, nil
}

type PurchaseStats struct {
	TotalPurchases  int64            `json:"total_purchases"`
	TotalRevenue    float64          `json:"total_revenue"`
	ProductsSold    map[string]int64 `json:"products_sold"`
	RecentPurchases int64            `json:"recent_purchases"`
}

// Stats aggregates completed orders for the admin dashboard.
func (s *OrderService) Stats() (*PurchaseStats, error) {
	stats := &PurchaseStats{ProductsSold: make(map[string]int64)}

	err := s.db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusCompleted).
		Count(&stats.TotalPurchases).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to count purchases", err)
	}

	var revenue *float64
	err = s.db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusCompleted).
		Select("SUM(amount)").Scan(&revenue).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to sum revenue", err)
	}
	if revenue != nil {
		stats.TotalRevenue = *revenue
	}

	type productCount struct {
		ProductID string
		Count     int64
	}
	var counts []productCount
	err = s.db.Model(&models.Order{}).
		Select("product_id, COUNT(*) as count").
		Where("status = ?", models.OrderStatusCompleted).
		Group("product_id").
		Scan(&counts).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to group products", err)
	}
	for _, pc := range counts {
		stats.ProductsSold[pc.ProductID] = pc.Count
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	err = s.db.Model(&models.Order{}).
		Where("status = ? AND created_at >= ?", models.OrderStatusCompleted, weekAgo).
		Count(&stats.RecentPurchases).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "failed to count recent purchases", err)
	}

	return stats, nil
}

// lockForUpdate takes a SELECT ... FOR UPDATE row lock on postgres. The
// sqlite driver used in tests serializes writers itself and rejects the
// clause, so it is skipped there.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
