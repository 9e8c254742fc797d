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

func newFarmService(t *testing.T, env *testEnv) FarmService {
	t.Helper()
	return NewFarmService(
		repository.NewFarmRepository(env.db),
		repository.NewTaxEntityRepository(env.db),
		env.auditRepo,
		repository.NewTransactionManager(env.db),
	)
}

func TestCreateFarmWithHenhouses(t *testing.T) {
	env := newTestEnv(t)
	farms := newFarmService(t, env)

	created, err := farms.CreateFarm(context.Background(), CreateFarmRequest{
		Name:    "Ferma Adamowo",
		Nip:     "5261040828",
		Address: "Adamowo 12",
		Henhouses: []HenhouseInput{
			{Name: "Kurnik 1", Code: "K1", AreaM2: 1200},
			{Name: "Kurnik 2", Code: "K2", AreaM2: 900},
		},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "Ferma Adamowo", created.Name)
	require.Len(t, created.Henhouses, 2)

	got, err := farms.GetFarm(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Len(t, got.Henhouses, 2)

	assert.Equal(t, 1, countAction(env.auditActions(t), model.ActionCreateFarm))
}

func TestUpdateFarmReplacesHenhouseSet(t *testing.T) {
	env := newTestEnv(t)
	farms := newFarmService(t, env)
	ctx := context.Background()

	created, err := farms.CreateFarm(ctx, CreateFarmRequest{
		Name: "Ferma Adamowo",
		Henhouses: []HenhouseInput{
			{Name: "Kurnik 1", Code: "K1"},
			{Name: "Kurnik 2", Code: "K2"},
		},
	}, "")
	require.NoError(t, err)

	updated, err := farms.UpdateFarm(ctx, created.ID, UpdateFarmRequest{
		Name: "Ferma Adamowo II",
		Henhouses: []HenhouseInput{
			{Name: "Kurnik 3", Code: "K3", AreaM2: 1500},
		},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "Ferma Adamowo II", updated.Name)
	require.Len(t, updated.Henhouses, 1)
	assert.Equal(t, "K3", updated.Henhouses[0].Code)

	// Old henhouses are gone, not just hidden
	got, err := farms.GetFarm(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Henhouses, 1)
	assert.Equal(t, "K3", got.Henhouses[0].Code)
}

func TestDeleteFarmRemovesHenhouses(t *testing.T) {
	env := newTestEnv(t)
	farms := newFarmService(t, env)
	ctx := context.Background()

	created, err := farms.CreateFarm(ctx, CreateFarmRequest{
		Name:      "Ferma Adamowo",
		Henhouses: []HenhouseInput{{Name: "Kurnik 1", Code: "K1"}},
	}, "")
	require.NoError(t, err)

	require.NoError(t, farms.DeleteFarm(ctx, created.ID, ""))

	_, err = farms.GetFarm(ctx, created.ID)
	assert.Error(t, err)

	var henhouses int64
	require.NoError(t, env.db.Model(&model.Henhouse{}).Count(&henhouses).Error)
	assert.Zero(t, henhouses)

	assert.Equal(t, 1, countAction(env.auditActions(t), model.ActionDeleteFarm))
}

func TestCreateTaxEntityRejectsDuplicateNip(t *testing.T) {
	env := newTestEnv(t)
	farms := newFarmService(t, env)
	ctx := context.Background()

	_, err := farms.CreateTaxEntity(ctx, CreateTaxEntityRequest{
		Name: "Gospodarstwo Rolne Kowalski",
		Nip:  "5261040828",
	}, "")
	require.NoError(t, err)

	_, err = farms.CreateTaxEntity(ctx, CreateTaxEntityRequest{
		Name: "Other Entity",
		Nip:  "5261040828",
	}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestCreateTaxEntityValidatesFarm(t *testing.T) {
	env := newTestEnv(t)
	farms := newFarmService(t, env)
	ctx := context.Background()

	_, err := farms.CreateTaxEntity(ctx, CreateTaxEntityRequest{
		Name:   "Entity",
		Nip:    "1111111111",
		FarmID: uuid.NewString(),
	}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "farm not found")

	farm, err := farms.CreateFarm(ctx, CreateFarmRequest{Name: "Ferma"}, "")
	require.NoError(t, err)

	entity, err := farms.CreateTaxEntity(ctx, CreateTaxEntityRequest{
		Name:   "Entity",
		Nip:    "1111111111",
		FarmID: farm.ID,
	}, "")
	require.NoError(t, err)
	require.NotNil(t, entity.FarmID)
	assert.Equal(t, farm.ID, *entity.FarmID)
}
