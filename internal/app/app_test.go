package app

import (
	"context"
	"testing"

	"github.com/straye-as/activity-reports/internal/distlock"
	"github.com/straye-as/activity-reports/internal/domain"
	"github.com/straye-as/activity-reports/internal/service"
	"github.com/straye-as/activity-reports/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewReportService_Generates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewReportService(db, distlock.NoopLocker{}, zap.NewNop())

	out, err := svc.Generate(context.Background(), service.GenerateReportRequest{
		Range: domain.SingleQuarter(domain.QuarterQ2, 2024),
	})
	require.NoError(t, err)
	assert.Equal(t, "Job Report (Q2/2024 - Q2/2024)", out.Report.String())
	assert.NotNil(t, out.UserResult)
}
