// internal/services/download_service_test.go
package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/gotchaguardian/payment-server/internal/apperrors"
	"github.com/gotchaguardian/payment-server/internal/config"
	"github.com/gotchaguardian/payment-server/internal/models"
)

type DownloadServiceTestSuite struct {
	suite.Suite
	db        *gorm.DB
	cfg       *config.Config
	orders    *OrderService
	keys      *ActivationService
	downloads *DownloadService
}

func (suite *DownloadServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.cfg = newTestConfig(suite.T())

	cat := newTestCatalog(suite.T())
	storage, err := NewStorageService(suite.cfg)
	suite.Require().NoError(err)

	suite.orders = NewOrderService(suite.db, cat)
	suite.keys = NewActivationService(suite.db)
	suite.downloads = NewDownloadService(suite.db, cat, storage, suite.cfg)
}

func (suite *DownloadServiceTestSuite) TestTokenBudgetEnforced() {
	// guardian_basic allows 5 downloads
	order := createCompletedOrder(suite.T(), suite.orders, suite.keys, "guardian_basic", "buyer@example.com")

	for i := 0; i < 5; i++ {
		_, err := suite.downloads.RequestToken(order.ID, "buyer@example.com")
		suite.Require().NoError(err, "mint %d", i+1)
	}

	_, err := suite.downloads.RequestToken(order.ID, "buyer@example.com")
	suite.Require().Error(err)
	suite.Equal(apperrors.KindRateLimited, apperrors.KindOf(err))
}

func (suite *DownloadServiceTestSuite) TestUnlimitedProductHasNoBudget() {
	// guardian_enterprise has no download limit
	order := createCompletedOrder(suite.T(), suite.orders, suite.keys, "guardian_enterprise", "corp@example.com")

	for i := 0; i < 12; i++ {
		_, err := suite.downloads.RequestToken(order.ID, "corp@example.com")
		suite.Require().NoError(err)
	}
}

func (suite *DownloadServiceTestSuite) TestTokenRequiresCompletedOrder() {
	order, err := suite.orders.CreateOrder("guardian_basic", &CustomerInfo{
		Email: "buyer@example.com",
		Name:  "Buyer",
	})
	suite.Require().NoError(err)

	_, err = suite.downloads.RequestToken(order.ID, "buyer@example.com")
	suite.Require().Error(err)
	suite.Equal(apperrors.KindForbidden, apperrors.KindOf(err))
}

func (suite *DownloadServiceTestSuite) TestTokenRequiresOwnerEmail() {
	order := createCompletedOrder(suite.T(), suite.orders, suite.keys, "guardian_basic", "buyer@example.com")

	_, err := suite.downloads.RequestToken(order.ID, "someone-else@example.com")
	suite.Require().Error(err)
	suite.Equal(apperrors.KindForbidden, apperrors.KindOf(err))
}

func (suite *DownloadServiceTestSuite) TestRedeemSpendsToken() {
	order := createCompletedOrder(suite.T(), suite.orders, suite.keys, "guardian_basic", "buyer@example.com")

	token, err := suite.downloads.RequestToken(order.ID, "buyer@example.com")
	suite.Require().NoError(err)

	descriptor, err := suite.downloads.RedeemToken(token.Token)
	suite.Require().NoError(err)
	suite.Equal("guardian_basic", descriptor.ProductID)
	suite.Equal("guardian_basic.zip", descriptor.FileName)
	suite.NotEmpty(descriptor.LocalPath)

	// Single-use: second redeem fails
	_, err = suite.downloads.RedeemToken(token.Token)
	suite.Require().Error(err)
	suite.Equal(apperrors.KindExhausted, apperrors.KindOf(err))

	var stored models.Order
	suite.Require().NoError(suite.db.First(&stored, "id = ?", order.ID).Error)
	suite.Equal(1, stored.DownloadCount)
	suite.NotNil(stored.LastDownloadAt)
}

func (suite *DownloadServiceTestSuite) TestExpiredTokenRejected() {
	order := createCompletedOrder(suite.T(), suite.orders, suite.keys, "guardian_basic", "buyer@example.com")

	token, err := suite.downloads.RequestToken(order.ID, "buyer@example.com")
	suite.Require().NoError(err)

	past := time.Now().Add(-time.Hour)
	suite.Require().NoError(suite.db.Model(&models.DownloadToken{}).
		Where("id = ?", token.ID).
		Update("expires_at", past).Error)

	_, err = suite.downloads.RedeemToken(token.Token)
	suite.Require().Error(err)
	suite.Equal(apperrors.KindExpired, apperrors.KindOf(err))
}

func (suite *DownloadServiceTestSuite) TestUnknownTokenNotFound() {
	_, err := suite.downloads.RedeemToken("no-such-token")
	suite.Require().Error(err)
	suite.Equal(apperrors.KindNotFound, apperrors.KindOf(err))
}

func (suite *DownloadServiceTestSuite) TestBudgetSpentAtMintNotRedeem() {
	order := createCompletedOrder(suite.T(), suite.orders, suite.keys, "guardian_basic", "buyer@example.com")

	// Mint the full budget without redeeming anything
	tokens := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		token, err := suite.downloads.RequestToken(order.ID, "buyer@example.com")
		suite.Require().NoError(err)
		tokens = append(tokens, token.Token)
	}

	_, err := suite.downloads.RequestToken(order.ID, "buyer@example.com")
	suite.Require().Error(err, "budget is consumed at mint time")

	// The minted tokens all still redeem
	for i, tok := range tokens {
		_, err := suite.downloads.RedeemToken(tok)
		suite.Require().NoError(err, fmt.Sprintf("token %d", i))
	}
}

func TestDownloadServiceSuite(t *testing.T) {
	suite.Run(t, new(DownloadServiceTestSuite))
}
