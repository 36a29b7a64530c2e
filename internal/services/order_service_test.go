// internal/services/order_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/gotchaguardian/payment-server/internal/apperrors"
	"github.com/gotchaguardian/payment-server/internal/models"
)

type OrderServiceTestSuite struct {
	suite.Suite
	db     *gorm.DB
	orders *OrderService
}

func (suite *OrderServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.orders = NewOrderService(suite.db, newTestCatalog(suite.T()))
}

func (suite *OrderServiceTestSuite) TestCreateOrderCopiesCatalogPrice() {
	order, err := suite.orders.CreateOrder("guardian_pro", &CustomerInfo{
		Email: "Buyer@Example.COM",
		Name:  "Buyer",
	})
	suite.Require().NoError(err)

	suite.Equal("guardian_pro", order.ProductID)
	suite.Equal(59.99, order.Amount)
	suite.Equal("USD", order.Currency)
	suite.Equal(models.OrderStatusPending, order.Status)
	suite.Equal("buyer@example.com", order.CustomerEmail)
}

func (suite *OrderServiceTestSuite) TestCreateOrderUnknownProduct() {
	_, err := suite.orders.CreateOrder("guardian_ultimate", &CustomerInfo{
		Email: "buyer@example.com",
		Name:  "Buyer",
	})
	suite.Require().Error(err)
	suite.Equal(apperrors.KindNotFound, apperrors.KindOf(err))
}

func (suite *OrderServiceTestSuite) TestCreateOrderInvalidEmail() {
	_, err := suite.orders.CreateOrder("guardian_basic", &CustomerInfo{
		Email: "not-an-email",
		Name:  "Buyer",
	})
	suite.Require().Error(err)
	suite.Equal(apperrors.KindValidation, apperrors.KindOf(err))
}

func (suite *OrderServiceTestSuite) TestGetOrderWrongEmailForbidden() {
	order, err := suite.orders.CreateOrder("guardian_basic", &CustomerInfo{
		Email: "owner@example.com",
		Name:  "Owner",
	})
	suite.Require().NoError(err)

	_, err = suite.orders.GetOrder(order.ID, "intruder@example.com")
	suite.Require().Error(err)
	suite.Equal(apperrors.KindForbidden, apperrors.KindOf(err))

	// Case differences do not lock the owner out
	got, err := suite.orders.GetOrder(order.ID, "OWNER@example.com")
	suite.Require().NoError(err)
	suite.Equal(order.ID, got.ID)
}

func (suite *OrderServiceTestSuite) TestIllegalTransitionLeavesOrderUnchanged() {
	order, err := suite.orders.CreateOrder("guardian_basic", &CustomerInfo{
		Email: "buyer@example.com",
		Name:  "Buyer",
	})
	suite.Require().NoError(err)

	_, err = suite.orders.Transition(order.ID, models.OrderStatusCompleted, nil)
	suite.Require().Error(err)
	suite.Equal(apperrors.KindInvalidTransition, apperrors.KindOf(err))

	var stored models.Order
	suite.Require().NoError(suite.db.First(&stored, "id = ?", order.ID).Error)
	suite.Equal(models.OrderStatusPending, stored.Status)
}

func (suite *OrderServiceTestSuite) TestMutateFailureRollsBackStatus() {
	order, err := suite.orders.CreateOrder("guardian_basic", &CustomerInfo{
		Email: "buyer@example.com",
		Name:  "Buyer",
	})
	suite.Require().NoError(err)

	_, err = suite.orders.Transition(order.ID, models.OrderStatusProcessing, func(tx *gorm.DB, o *models.Order) error {
		return apperrors.New(apperrors.KindInternal, "mutation failed")
	})
	suite.Require().Error(err)

	var stored models.Order
	suite.Require().NoError(suite.db.First(&stored, "id = ?", order.ID).Error)
	suite.Equal(models.OrderStatusPending, stored.Status)
}

func (suite *OrderServiceTestSuite) TestCancelPendingOrder() {
	order, err := suite.orders.CreateOrder("guardian_basic", &CustomerInfo{
		Email: "buyer@example.com",
		Name:  "Buyer",
	})
	suite.Require().NoError(err)

	cancelled, err := suite.orders.Cancel(order.ID)
	suite.Require().NoError(err)
	suite.Equal(models.OrderStatusCancelled, cancelled.Status)

	// Cancelled is a dead end
	_, err = suite.orders.Transition(order.ID, models.OrderStatusProcessing, nil)
	suite.Require().Error(err)
	suite.Equal(apperrors.KindInvalidTransition, apperrors.KindOf(err))
}

func (suite *OrderServiceTestSuite) TestStats() {
	keys := NewActivationService(suite.db)
	createCompletedOrder(suite.T(), suite.orders, keys, "guardian_basic", "a@example.com")
	createCompletedOrder(suite.T(), suite.orders, keys, "guardian_basic", "b@example.com")
	createCompletedOrder(suite.T(), suite.orders, keys, "guardian_pro", "c@example.com")

	// A pending order must not count
	_, err := suite.orders.CreateOrder("guardian_enterprise", &CustomerInfo{
		Email: "d@example.com",
		Name:  "D",
	})
	suite.Require().NoError(err)

	stats, err := suite.orders.Stats()
	suite.Require().NoError(err)
	suite.Equal(int64(3), stats.TotalPurchases)
	suite.InDelta(29.99+29.99+59.99, stats.TotalRevenue, 0.001)
	suite.Equal(int64(2), stats.ProductsSold["guardian_basic"])
	suite.Equal(int64(1), stats.ProductsSold["guardian_pro"])
	suite.Equal(int64(3), stats.RecentPurchases)
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceTestSuite))
}
