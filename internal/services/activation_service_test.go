// internal/services/activation_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/gotchaguardian/payment-server/internal/apperrors"
	"github.com/gotchaguardian/payment-server/internal/models"
	"github.com/gotchaguardian/payment-server/internal/utils"
)

type ActivationServiceTestSuite struct {
	suite.Suite
	db     *gorm.DB
	orders *OrderService
	keys   *ActivationService
}

func (suite *ActivationServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.orders = NewOrderService(suite.db, newTestCatalog(suite.T()))
	suite.keys = NewActivationService(suite.db)
}

func (suite *ActivationServiceTestSuite) TestIssuedKeyFormat() {
	order := createCompletedOrder(suite.T(), suite.orders, suite.keys, "guardian_basic", "buyer@example.com")

	key, err := suite.keys.GetByOrder(order.ID)
	suite.Require().NoError(err)
	suite.True(utils.ValidActivationKeyFormat(key.Key), "issued key %q", key.Key)
	suite.Equal("guardian_basic", key.ProductID)
	suite.False(key.Revoked)
}

func (suite *ActivationServiceTestSuite) TestIssueIsIdempotentPerOrder() {
	order := createCompletedOrder(suite.T(), suite.orders, suite.keys, "guardian_basic", "buyer@example.com")

	first, err := suite.keys.GetByOrder(order.ID)
	suite.Require().NoError(err)

	var again *models.ActivationKey
	err = suite.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		again, txErr = suite.keys.IssueTx(tx, order)
		return txErr
	})
	suite.Require().NoError(err)
	suite.Equal(first.Key, again.Key)

	var count int64
	suite.Require().NoError(suite.db.Model(&models.ActivationKey{}).
		Where("order_id = ?", order.ID).Count(&count).Error)
	suite.Equal(int64(1), count)
}

func (suite *ActivationServiceTestSuite) TestRevokeFlagsWithoutDeleting() {
	order := createCompletedOrder(suite.T(), suite.orders, suite.keys, "guardian_basic", "buyer@example.com")

	err := suite.db.Transaction(func(tx *gorm.DB) error {
		return suite.keys.RevokeTx(tx, order.ID)
	})
	suite.Require().NoError(err)

	key, err := suite.keys.GetByOrder(order.ID)
	suite.Require().NoError(err)
	suite.True(key.Revoked)
	suite.NotNil(key.RevokedAt)
}

func (suite *ActivationServiceTestSuite) TestGetByOrderMissing() {
	order, err := suite.orders.CreateOrder("guardian_basic", &CustomerInfo{
		Email: "buyer@example.com",
		Name:  "Buyer",
	})
	suite.Require().NoError(err)

	_, err = suite.keys.GetByOrder(order.ID)
	suite.Require().Error(err)
	suite.Equal(apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestActivationServiceSuite(t *testing.T) {
	suite.Run(t, new(ActivationServiceTestSuite))
}
