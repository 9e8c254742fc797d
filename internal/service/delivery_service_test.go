package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeliveryEnv(t *testing.T) (*testEnv, DeliveryService, FarmResponse) {
	t.Helper()
	env := newTestEnv(t)

	farmRepo := repository.NewFarmRepository(env.db)
	deliveries := NewDeliveryService(
		repository.NewFeedDeliveryRepository(env.db),
		repository.NewGasDeliveryRepository(env.db),
		farmRepo,
		env.auditRepo,
		repository.NewTransactionManager(env.db),
	)

	farms := newFarmService(t, env)
	farm, err := farms.CreateFarm(context.Background(), CreateFarmRequest{Name: "Ferma Adamowo"}, "")
	require.NoError(t, err)

	return env, deliveries, farm
}

func TestCreateFeedDeliveryComputesTotal(t *testing.T) {
	env, deliveries, farm := newDeliveryEnv(t)

	created, err := deliveries.CreateFeedDelivery(context.Background(), CreateFeedDeliveryRequest{
		FarmID:      farm.ID,
		VendorName:  "Pasze Polskie",
		FeedName:    "DKA Starter",
		QuantityKg:  "2500",
		UnitPrice:   "1.87",
		InvoiceNo:   "FV/2026/08/100",
		DeliveredAt: "2026-08-10",
	}, "")
	require.NoError(t, err)

	assert.Equal(t, "2500.00", created.QuantityKg)
	assert.Equal(t, "1.87", created.UnitPrice)
	assert.Equal(t, "4675.00", created.TotalPrice)
	assert.Equal(t, "2026-08-10", created.DeliveredAt)

	assert.Equal(t, 1, countAction(env.auditActions(t), model.ActionCreateDelivery))
}

func TestCreateDeliveryValidation(t *testing.T) {
	_, deliveries, farm := newDeliveryEnv(t)
	ctx := context.Background()

	base := CreateGasDeliveryRequest{
		FarmID:         farm.ID,
		VendorName:     "Orlen Gaz",
		QuantityLiters: "1200",
		UnitPrice:      "2.95",
		DeliveredAt:    "2026-08-10",
	}

	unknownFarm := base
	unknownFarm.FarmID = uuid.NewString()
	_, err := deliveries.CreateGasDelivery(ctx, unknownFarm, "")
	assert.Error(t, err)

	zeroQuantity := base
	zeroQuantity.QuantityLiters = "0"
	_, err = deliveries.CreateGasDelivery(ctx, zeroQuantity, "")
	assert.Error(t, err)

	negativePrice := base
	negativePrice.UnitPrice = "-1.00"
	_, err = deliveries.CreateGasDelivery(ctx, negativePrice, "")
	assert.Error(t, err)

	badDate := base
	badDate.DeliveredAt = "10.08.2026"
	_, err = deliveries.CreateGasDelivery(ctx, badDate, "")
	assert.Error(t, err)
}

func TestListGasDeliveriesFiltersByDateRange(t *testing.T) {
	_, deliveries, farm := newDeliveryEnv(t)
	ctx := context.Background()

	for _, date := range []string{"2026-08-01", "2026-08-15", "2026-09-01"} {
		_, err := deliveries.CreateGasDelivery(ctx, CreateGasDeliveryRequest{
			FarmID:         farm.ID,
			VendorName:     "Orlen Gaz",
			QuantityLiters: "1000",
			UnitPrice:      "2.95",
			DeliveredAt:    date,
		}, "")
		require.NoError(t, err)
	}

	got, total, err := deliveries.ListGasDeliveries(ctx, DeliveryQuery{
		FarmID: farm.ID,
		From:   "2026-08-10",
		To:     "2026-08-31",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, "2026-08-15", got[0].DeliveredAt)
}

func TestDeleteFeedDelivery(t *testing.T) {
	env, deliveries, farm := newDeliveryEnv(t)
	ctx := context.Background()

	created, err := deliveries.CreateFeedDelivery(ctx, CreateFeedDeliveryRequest{
		FarmID:      farm.ID,
		VendorName:  "Pasze Polskie",
		FeedName:    "DKA Grower",
		QuantityKg:  "1000",
		UnitPrice:   "1.50",
		DeliveredAt: "2026-08-10",
	}, "")
	require.NoError(t, err)

	require.NoError(t, deliveries.DeleteFeedDelivery(ctx, created.ID, ""))

	_, total, err := deliveries.ListFeedDeliveries(ctx, DeliveryQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)

	assert.Equal(t, 1, countAction(env.auditActions(t), model.ActionDeleteDelivery))

	// Deleting twice reports not found
	err = deliveries.DeleteFeedDelivery(ctx, created.ID, "")
	assert.Error(t, err)
}
