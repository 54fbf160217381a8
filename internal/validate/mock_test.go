package validate

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type mockDuplicateFinder struct {
	mock.Mock
}

func (m *mockDuplicateFinder) FindDuplicates(ctx context.Context, tenantID, checkNumber string, amountCents int64, checkDate time.Time, excludeID string) ([]string, error) {
	args := m.Called(ctx, tenantID, checkNumber, amountCents, checkDate, excludeID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
