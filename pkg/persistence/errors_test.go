package persistence_test

import (
	"errors"
	"testing"

	"github.com/albertobarcelos/nexflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error constants are available", func(t *testing.T) {
		assert.NotNil(t, persistence.ErrFlowNotFound)
		assert.NotNil(t, persistence.ErrStepNotFound)
		assert.NotNil(t, persistence.ErrFieldNotFound)
		assert.NotNil(t, persistence.ErrCardNotFound)
		assert.NotNil(t, persistence.ErrTenantViolation)
	})

	t.Run("error checking functions work correctly", func(t *testing.T) {
		flowErr := persistence.NewFlowError("GetByID", "flow-123", persistence.ErrFlowNotFound)
		cardErr := persistence.NewCardError("Move", "card-456", persistence.ErrCardNotFound)

		assert.True(t, persistence.IsFlowNotFound(flowErr))
		assert.True(t, persistence.IsCardNotFound(cardErr))
		assert.True(t, persistence.IsNotFound(flowErr))
		assert.True(t, persistence.IsNotFound(cardErr))

		// Test error unwrapping
		assert.True(t, errors.Is(flowErr, persistence.ErrFlowNotFound))
		assert.True(t, errors.Is(cardErr, persistence.ErrCardNotFound))
	})

	t.Run("tenant violation is not a not-found", func(t *testing.T) {
		err := persistence.NewCardError("Move", "card-789", persistence.ErrTenantViolation)

		assert.True(t, persistence.IsTenantViolation(err))
		assert.False(t, persistence.IsNotFound(err))
	})

	t.Run("flow error contains context", func(t *testing.T) {
		err := persistence.NewFlowError("Delete", "flow-123", persistence.ErrFlowNotFound)

		assert.Contains(t, err.Error(), "Delete")
		assert.Contains(t, err.Error(), "flow-123")
		assert.Contains(t, err.Error(), "flow not found")
	})

	t.Run("card error contains context", func(t *testing.T) {
		err := persistence.NewCardError("Save", "card-456", persistence.ErrCardNotFound)

		assert.Contains(t, err.Error(), "Save")
		assert.Contains(t, err.Error(), "card-456")
		assert.Contains(t, err.Error(), "card not found")
	})
}
