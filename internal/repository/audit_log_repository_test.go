package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smmpanel/internal/domain"
	"smmpanel/pkg/logger"
)

func TestAuditLogRepository_CreateAndQuery(t *testing.T) {
	repo := NewAuditLogRepository(newTestDB(t), logger.NewNop())

	first := &domain.AuditLog{EntityType: domain.EntityTypeOrder, EntityID: "23501", UserID: "u1", Action: domain.ActionTypeCreate, Details: "charge 356.90"}
	second := &domain.AuditLog{EntityType: domain.EntityTypeOrder, EntityID: "23501", Action: domain.ActionTypeReconcile}
	other := &domain.AuditLog{EntityType: domain.EntityTypeDeposit, EntityID: "d1", UserID: "u1", Action: domain.ActionTypeCreate}

	require.NoError(t, repo.Create(first))
	require.NoError(t, repo.Create(second))
	require.NoError(t, repo.Create(other))
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	logs, err := repo.FindByEntityID(domain.EntityTypeOrder, "23501")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.ActionTypeReconcile, logs[0].Action)
	assert.Equal(t, "charge 356.90", logs[1].Details)
	assert.Equal(t, "u1", logs[1].UserID)

	all, err := repo.FindAll(2, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rest, err := repo.FindAll(2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}
