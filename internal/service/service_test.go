package service

import (
	"context"
	"testing"

	"backoffice/internal/database"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

// ledgerFixture wires the full service stack against an in-memory
// database, one isolated store per test.
type ledgerFixture struct {
	db          *gorm.DB
	receivables ReceivableService
	payments    PaymentService
	linkage     LinkageService
	requests    RequestService
	catalog     CatalogService

	storeID uuid.UUID
	actorID string
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	db := newTestDB(t)
	txManager := repository.NewTransactionManager(db)
	receivableRepo := repository.NewReceivableRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	productRepo := repository.NewProductRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	return &ledgerFixture{
		db:          db,
		receivables: NewReceivableService(receivableRepo, paymentRepo, auditRepo, txManager, nil, nil),
		payments:    NewPaymentService(receivableRepo, paymentRepo, auditRepo, txManager, nil),
		linkage:     NewLinkageService(receivableRepo, paymentRepo, requestRepo, productRepo, movementRepo, auditRepo, txManager, nil),
		requests:    NewRequestService(requestRepo, productRepo, movementRepo, txManager),
		catalog:     NewCatalogService(productRepo, movementRepo, txManager),
		storeID:     uuid.New(),
		actorID:     uuid.NewString(),
	}
}

func (f *ledgerFixture) createReceivable(t *testing.T, amount, currency string) ReceivableResponse {
	t.Helper()
	resp, err := f.receivables.Create(context.Background(), f.actorID, CreateReceivableRequest{
		StoreID:  f.storeID.String(),
		Amount:   amount,
		Currency: currency,
	})
	require.NoError(t, err)
	return resp
}

func (f *ledgerFixture) pay(t *testing.T, receivableID, amount string) PaymentLedgerResponse {
	t.Helper()
	ledger, err := f.payments.ApplyPayment(context.Background(), f.actorID, receivableID, ApplyPaymentRequest{
		StoreID: f.storeID.String(),
		Amount:  amount,
	})
	require.NoError(t, err)
	return ledger
}

func (f *ledgerFixture) createProduct(t *testing.T, sku string, variants []VariantInput) *model.Product {
	t.Helper()
	product, err := f.catalog.CreateProduct(context.Background(), CreateProductRequest{
		StoreID:  f.storeID.String(),
		SKU:      sku,
		Name:     "Product " + sku,
		Price:    "10.00",
		Variants: variants,
	})
	require.NoError(t, err)
	return product
}

func (f *ledgerFixture) variantStock(t *testing.T, productID uuid.UUID, variantKey string) int {
	t.Helper()
	var variant model.ProductVariant
	require.NoError(t, f.db.
		Where("product_id = ? AND variant_key = ?", productID, variantKey).
		First(&variant).Error)
	return variant.Stock
}
