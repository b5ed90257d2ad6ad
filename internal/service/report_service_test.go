package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/straye-as/activity-reports/internal/distlock"
	"github.com/straye-as/activity-reports/internal/domain"
	"github.com/straye-as/activity-reports/internal/repository"
	"github.com/straye-as/activity-reports/internal/service"
	"github.com/straye-as/activity-reports/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func newReportService(db *gorm.DB, locker distlock.Locker) *service.ReportService {
	return newReportServiceWithJobs(db, locker, repository.NewJobRepository(db))
}

func newReportServiceWithJobs(db *gorm.DB, locker distlock.Locker, jobs service.JobSource) *service.ReportService {
	return buildReportService(db, locker, jobs, zap.NewNop())
}

func buildReportService(db *gorm.DB, locker distlock.Locker, jobs service.JobSource, log *zap.Logger) *service.ReportService {
	orders := repository.NewOrderRepository(db)
	return service.NewReportService(
		repository.NewReportRepository(db),
		repository.NewReportResultRepository(db),
		repository.NewUserRepository(db),
		service.NewJobStatsService(jobs, log),
		service.NewOrderStatsService(orders, log),
		service.NewUserStatsService(
			repository.NewCustomerRepository(db),
			repository.NewAccountManagerRepository(db),
			orders,
			log,
		),
		locker,
		log,
	)
}

func q1Request() service.GenerateReportRequest {
	return service.GenerateReportRequest{Range: domain.SingleQuarter(domain.QuarterQ1, 2024)}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestReportService_UpsertJobReport_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedJobs(t, db)
	svc := newReportService(db, nil)
	ctx := context.Background()

	first, err := svc.UpsertJobReport(ctx, q1Request())
	require.NoError(t, err)
	second, err := svc.UpsertJobReport(ctx, q1Request())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ReportID, second.ReportID)
	assert.Equal(t, int64(3), second.TotalJobs)
	assert.Equal(t, *first.AvgCompletionTimeRegular, *second.AvgCompletionTimeRegular)

	assert.Equal(t, int64(1), countRows(t, db, &domain.Report{}))
	assert.Equal(t, int64(1), countRows(t, db, &domain.JobReportResult{}))

	report, err := svc.GetReport(ctx, second.ReportID)
	require.NoError(t, err)
	assert.Equal(t, "Job Report", report.Title)
	require.NotNil(t, report.JobResult)
	assert.Nil(t, report.OrderResult)
}

func TestReportService_UpsertOverwritesAfterDataChange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newReportService(db, nil)
	ctx := context.Background()

	empty, err := svc.UpsertJobReport(ctx, q1Request())
	require.NoError(t, err)
	assert.Zero(t, empty.TotalJobs)

	seedJobs(t, db)
	updated, err := svc.UpsertJobReport(ctx, q1Request())
	require.NoError(t, err)
	assert.Equal(t, empty.ID, updated.ID)
	assert.Equal(t, int64(3), updated.TotalJobs)
}

func TestReportService_AreasShareReport(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newReportService(db, nil)
	ctx := context.Background()

	order, err := svc.UpsertOrderReport(ctx, q1Request())
	require.NoError(t, err)
	user, err := svc.UpsertUserReport(ctx, q1Request())
	require.NoError(t, err)

	assert.Equal(t, order.ReportID, user.ReportID)

	report, err := svc.GetReportByRange(ctx, domain.SingleQuarter(domain.QuarterQ1, 2024))
	require.NoError(t, err)
	// The area that created the report names it
	assert.Equal(t, "Order Report", report.Title)
}

func TestReportService_InvalidQuarter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newReportService(db, nil)

	req := service.GenerateReportRequest{Range: domain.QuarterRange{
		QuarterFrom: "Q5", YearFrom: 2024, QuarterTo: domain.QuarterQ1, YearTo: 2024,
	}}
	_, err := svc.UpsertJobReport(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidQuarter)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	assert.Zero(t, countRows(t, db, &domain.Report{}))
}

func TestReportService_InvalidYear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newReportService(db, nil)

	_, err := svc.Generate(context.Background(), service.GenerateReportRequest{
		Range: domain.SingleQuarter(domain.QuarterQ2, 12),
	})
	var ve *service.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	require.NotEmpty(t, ve.Fields)
	assert.Equal(t, "yearFrom", ve.Fields[0].Field)
}

func TestReportService_UnknownAuthor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newReportService(db, nil)

	req := q1Request()
	ghost := "no-such-user"
	req.AuthorID = &ghost

	_, err := svc.UpsertOrderReport(context.Background(), req)
	var ve *service.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	assert.Equal(t, "authorId", ve.Fields[0].Field)
	assert.Zero(t, countRows(t, db, &domain.Report{}))
}

func TestReportService_Generate(t *testing.T) {
	f := newOrderFixture(t)
	seedJobs(t, f.db)
	customer := testutil.CreateCustomer(t, f.db, "Acme", testutil.Date(2024, time.January, 2))
	testutil.CreateOrder(t, f.db, customer, f.john, testutil.Date(2024, time.January, 15), f.s100)
	testutil.CreateOrder(t, f.db, customer, f.john, testutil.Date(2024, time.February, 15), f.s100, f.s200)

	author := testutil.CreateUser(t, f.db, "admin", "", "")
	svc := newReportService(f.db, nil)
	req := q1Request()
	req.AuthorID = &author.ID

	generated, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Job Report", generated.Report.Title)
	assert.Equal(t, generated.Report.ID, generated.JobResult.ReportID)
	assert.Equal(t, generated.Report.ID, generated.OrderResult.ReportID)
	assert.Equal(t, generated.Report.ID, generated.UserResult.ReportID)
	assert.Equal(t, int64(3), generated.JobResult.TotalJobs)
	assert.Equal(t, "400.00", generated.OrderResult.TotalRevenue.StringFixed(2))
	assert.Equal(t, []string{"John Doe"}, generated.UserResult.TopPerformingManagers.Names())

	again, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, generated.Report.ID, again.Report.ID)
	assert.Equal(t, generated.OrderResult.ID, again.OrderResult.ID)

	assert.Equal(t, int64(1), countRows(t, f.db, &domain.Report{}))
	assert.Equal(t, int64(1), countRows(t, f.db, &domain.OrderReportResult{}))
	assert.Equal(t, int64(1), countRows(t, f.db, &domain.UserReportResult{}))

	report, err := svc.GetReport(context.Background(), generated.Report.ID)
	require.NoError(t, err)
	require.NotNil(t, report.CreatedBy)
	assert.Equal(t, "admin", report.CreatedBy.DisplayName())
}

func TestReportService_Generate_Locked(t *testing.T) {
	db := testutil.SetupTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := distlock.NewRedisLocker(client, time.Minute)
	svc := newReportService(db, locker)
	req := q1Request()

	held := locker.NewLock("reports:generate:" + req.Range.Key())
	ok, err := held.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Generate(context.Background(), req)
	assert.ErrorIs(t, err, service.ErrReportLocked)
	assert.Zero(t, countRows(t, db, &domain.Report{}))

	require.NoError(t, held.Release(context.Background()))

	_, err = svc.Generate(context.Background(), req)
	require.NoError(t, err)
	// The generation lock is released afterwards
	assert.False(t, mr.Exists(distlock.KeyPrefix+"reports:generate:"+req.Range.Key()))
}

// countingUsers records author lookups
type countingUsers struct {
	service.UserLookup
	calls int
}

func (c *countingUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	c.calls++
	return c.UserLookup.GetByID(ctx, id)
}

func TestReportService_Generate_ChecksAuthorOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedJobs(t, db)
	author := testutil.CreateUser(t, db, "admin", "", "")
	users := &countingUsers{UserLookup: repository.NewUserRepository(db)}

	orders := repository.NewOrderRepository(db)
	log := zap.NewNop()
	svc := service.NewReportService(
		repository.NewReportRepository(db),
		repository.NewReportResultRepository(db),
		users,
		service.NewJobStatsService(repository.NewJobRepository(db), log),
		service.NewOrderStatsService(orders, log),
		service.NewUserStatsService(
			repository.NewCustomerRepository(db),
			repository.NewAccountManagerRepository(db),
			orders,
			log,
		),
		nil,
		log,
	)

	req := q1Request()
	req.AuthorID = &author.ID
	generated, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(3), generated.JobResult.TotalJobs)
	assert.Equal(t, 1, users.calls)
}

// slowJobSource runs hook before counting, standing in for a long query
type slowJobSource struct {
	service.JobSource
	hook func()
}

func (s *slowJobSource) CountWithinRange(ctx context.Context, dr domain.DateRange) (int64, error) {
	s.hook()
	return s.JobSource.CountWithinRange(ctx, dr)
}

func TestReportService_Generate_HoldsLockPastTTL(t *testing.T) {
	db := testutil.SetupTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := distlock.NewRedisLocker(client, 100*time.Millisecond)
	req := q1Request()

	var takenOver bool
	jobs := &slowJobSource{JobSource: repository.NewJobRepository(db), hook: func() {
		// Well past the TTL in total, with renewals in between
		for i := 0; i < 4; i++ {
			time.Sleep(100 * time.Millisecond)
			mr.FastForward(80 * time.Millisecond)
		}
		other := locker.NewLock("reports:generate:" + req.Range.Key())
		ok, err := other.Acquire(context.Background())
		require.NoError(t, err)
		takenOver = ok
	}}

	_, err := newReportServiceWithJobs(db, locker, jobs).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, takenOver, "another generator acquired the lock mid-run")
	assert.False(t, mr.Exists(distlock.KeyPrefix+"reports:generate:"+req.Range.Key()))
}

func TestReportService_Generate_AbortsWhenLockIsLost(t *testing.T) {
	db := testutil.SetupTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := distlock.NewRedisLocker(client, 100*time.Millisecond)
	req := q1Request()
	key := distlock.KeyPrefix + "reports:generate:" + req.Range.Key()

	jobs := &slowJobSource{JobSource: repository.NewJobRepository(db), hook: func() {
		require.NoError(t, mr.Set(key, "another-process"))
		time.Sleep(300 * time.Millisecond)
	}}

	_, err := newReportServiceWithJobs(db, locker, jobs).Generate(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, distlock.ErrLockLost)
	assert.Zero(t, countRows(t, db, &domain.Report{}))
	// The other process keeps its lock
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "another-process", got)
}

func TestReportService_ListDeleteAttach(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newReportService(db, nil)
	ctx := context.Background()

	for _, q := range domain.Quarters {
		_, err := svc.UpsertJobReport(ctx, service.GenerateReportRequest{Range: domain.SingleQuarter(q, 2024)})
		require.NoError(t, err)
	}

	list, err := svc.ListReports(ctx, service.ListReportsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), list.Total)
	assert.Equal(t, 1, list.Page)

	_, err = svc.ListReports(ctx, service.ListReportsRequest{Filter: repository.ReportFilter{QuarterFrom: "Q9"}})
	assert.ErrorIs(t, err, domain.ErrInvalidQuarter)

	target := list.Reports[0]
	require.NoError(t, svc.AttachDocument(ctx, target.ID, "report.pdf", []byte("%PDF")))
	assert.ErrorIs(t, svc.AttachDocument(ctx, target.ID, "", nil), service.ErrInvalidInput)
	assert.ErrorIs(t, svc.AttachDocument(ctx, uuid.New(), "x.pdf", []byte("x")), service.ErrNotFound)

	require.NoError(t, svc.DeleteReport(ctx, target.ID))
	_, err = svc.GetReport(ctx, target.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteReport(ctx, target.ID), service.ErrNotFound)

	assert.Equal(t, int64(3), countRows(t, db, &domain.JobReportResult{}))
}

func TestReportService_AttachDocument_LogsReplacement(t *testing.T) {
	db := testutil.SetupTestDB(t)
	core, logs := observer.New(zap.InfoLevel)
	svc := buildReportService(db, nil, repository.NewJobRepository(db), zap.New(core))
	ctx := context.Background()

	row, err := svc.UpsertJobReport(ctx, q1Request())
	require.NoError(t, err)

	require.NoError(t, svc.AttachDocument(ctx, row.ReportID, "draft.pdf", []byte("%PDF-draft")))
	require.NoError(t, svc.AttachDocument(ctx, row.ReportID, "final.pdf", []byte("%PDF-final")))

	attached := logs.FilterMessage("document attached").All()
	require.Len(t, attached, 2)
	assert.Equal(t, false, attached[0].ContextMap()["replaced"])
	assert.Equal(t, true, attached[1].ContextMap()["replaced"])

	report, err := svc.GetReport(ctx, row.ReportID)
	require.NoError(t, err)
	assert.Equal(t, "final.pdf", report.DocumentName)
	assert.Equal(t, []byte("%PDF-final"), report.Document)
}
