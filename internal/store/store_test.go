package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsboard/internal/cache"
	"opsboard/internal/database"
	"opsboard/internal/models"
	"opsboard/internal/reconcile"
	"opsboard/internal/store"
	"opsboard/internal/tables"
	"opsboard/internal/testutil"
)

func setup(t *testing.T) (*store.Store, *tables.Client) {
	t.Helper()
	c := testutil.SetupTestDB(t)
	return testutil.NewStore(t, c), c
}

func TestUpsertJobDefaults(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	j, err := s.UpsertJob(ctx, models.Job{JobNumber: "J-2024-101", Title: "Bracket"})
	require.NoError(t, err)
	assert.Equal(t, "not_started", j.Status)
	assert.Equal(t, "normal", j.Priority)
	assert.Equal(t, "2024-03-15T09:30:00Z", j.CreatedAt)

	got, err := s.GetJob(ctx, "J-2024-101")
	require.NoError(t, err)
	assert.Equal(t, "Bracket", got.Title)

	_, err = s.GetJob(ctx, "J-0000")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestListJobsFilters(t *testing.T) {
	s, c := setup(t)
	ctx := context.Background()
	testutil.Insert(t, c, database.TableJobs,
		tables.Row{"job_number": "J-1", "title": "Bracket", "status": "in_progress", "work_center": "CNC-1", "due_date": "2024-03-20"},
		tables.Row{"job_number": "J-2", "title": "Housing", "status": "completed", "work_center": "WELD", "due_date": "2024-03-01"},
		tables.Row{"job_number": "J-3", "title": "Shaft", "status": "in_progress", "work_center": "WELD", "due_date": "2024-03-10"},
	)

	all, err := s.ListJobs(ctx, store.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "J-2", all[0].JobNumber)

	inProgress, err := s.ListJobs(ctx, store.JobFilter{Status: "in_progress", WorkCenter: "WELD"})
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, "J-3", inProgress[0].JobNumber)

	found, err := s.ListJobs(ctx, store.JobFilter{Search: "hous"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "J-2", found[0].JobNumber)

	overdue, err := s.OverdueJobs(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "J-3", overdue[0].JobNumber)
}

func TestUpdateJobStatusRecordsTimeline(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	_, err := s.UpsertJob(ctx, models.Job{JobNumber: "J-1", Status: "in_progress", Progress: 40})
	require.NoError(t, err)

	j, err := s.UpdateJobStatus(ctx, "J-1", "completed", "alice")
	require.NoError(t, err)
	assert.Equal(t, "completed", j.Status)
	assert.Equal(t, 100, j.Progress)

	stored, err := s.GetJob(ctx, "J-1")
	require.NoError(t, err)
	assert.Equal(t, 100, stored.Progress)

	events, err := s.TimelineForJob(ctx, "J-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "status_change", events[0].EventType)
	assert.Equal(t, "Status changed from in_progress to completed", events[0].Description)
	assert.Equal(t, "alice", events[0].CreatedBy)

	_, err = s.UpdateJobStatus(ctx, "J-404", "completed", "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateJobProgressClamps(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	_, err := s.UpsertJob(ctx, models.Job{JobNumber: "J-1"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateJobProgress(ctx, "J-1", 140))
	j, _ := s.GetJob(ctx, "J-1")
	assert.Equal(t, 100, j.Progress)

	require.NoError(t, s.UpdateJobProgress(ctx, "J-1", -5))
	j, _ = s.GetJob(ctx, "J-1")
	assert.Equal(t, 0, j.Progress)

	assert.ErrorIs(t, s.UpdateJobProgress(ctx, "J-404", 10), store.ErrNotFound)
}

func TestOperationsMergeBothTables(t *testing.T) {
	s, c := setup(t)
	ctx := context.Background()

	testutil.Insert(t, c, database.TableJobOperations,
		tables.Row{"op_key": "J-1/0010", "Sales Document": "J-1", "Oper./Act.": "0010", "Work Center": "CNC-1", "Work": 8.0, "Actual work": 8.0},
	)
	require.NoError(t, s.UpsertSAPOperations(ctx, []models.Operation{
		{Order: "J-1", OperationNo: "0010", WorkCenter: "OLD", PlannedWork: 5},
		{Order: "J-1", OperationNo: "0020", WorkCenter: "WELD", PlannedWork: 4, ActualWork: 1},
		{Order: "J-2", OperationNo: "0010", WorkCenter: "WELD", PlannedWork: 2},
	}))

	ops, err := s.OperationsForJob(ctx, "J-1")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "0010", ops[0].OperationNo)
	assert.Equal(t, "CNC-1", ops[0].WorkCenter)
	assert.Equal(t, reconcile.SourceJob, ops[0].Source)
	assert.Equal(t, "completed", ops[0].Status)
	assert.Equal(t, "0020", ops[1].OperationNo)
	assert.Equal(t, 3.0, ops[1].RemainingWork)

	weld, err := s.OperationsForWorkCenter(ctx, "WELD")
	require.NoError(t, err)
	assert.Len(t, weld, 2)
}

func TestUpdateActualWork(t *testing.T) {
	s, c := setup(t)
	ctx := context.Background()
	testutil.Insert(t, c, database.TableJobOperations,
		tables.Row{"op_key": "J-1/0010", "Order": "J-1", "Oper./Act.": "0010", "Work": 10.0, "Actual work": 0.0},
	)
	require.NoError(t, s.UpsertSAPOperations(ctx, []models.Operation{
		{Order: "J-1", OperationNo: "0020", PlannedWork: 4},
	}))

	op, err := s.UpdateActualWork(ctx, "J-1", "0010", 6)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", op.Status)
	assert.Equal(t, 4.0, op.RemainingWork)

	op, err = s.UpdateActualWork(ctx, "J-1", "0020", 4)
	require.NoError(t, err)
	assert.Equal(t, "completed", op.Status)

	ops, err := s.OperationsForJob(ctx, "J-1")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, 6.0, ops[0].ActualWork)
	assert.Equal(t, 4.0, ops[1].ActualWork)

	_, err = s.UpdateActualWork(ctx, "J-1", "0099", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UpdateActualWork(ctx, "J-1", "0010", -1)
	assert.Error(t, err)
}

func TestUpdateActualWorkWritesBothTables(t *testing.T) {
	s, c := setup(t)
	ctx := context.Background()
	op := models.Operation{Order: "J-1", OperationNo: "0010", WorkCenter: "WELD", PlannedWork: 10, ActualWork: 2}
	require.NoError(t, s.UpsertJobOperations(ctx, []models.Operation{op}))
	require.NoError(t, s.UpsertSAPOperations(ctx, []models.Operation{op}))

	got, err := s.UpdateActualWork(ctx, "J-1", "0010", 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got.ActualWork)

	jobRows, err := c.Select(ctx, database.TableJobOperations, tables.Query{Filters: []tables.Filter{tables.Eq("op_key", "J-1/0010")}})
	require.NoError(t, err)
	require.Len(t, jobRows, 1)
	assert.Equal(t, 7.0, reconcile.Number(jobRows[0], "Actual work"))

	sapRows, err := c.Select(ctx, database.TableSAPOperations, tables.Query{Filters: []tables.Filter{tables.Eq("op_key", "J-1/0010")}})
	require.NoError(t, err)
	require.Len(t, sapRows, 1)
	assert.Equal(t, 7.0, reconcile.Number(sapRows[0], "actual_work"))
	assert.Equal(t, "in_progress", reconcile.Text(sapRows[0], "status"))
}

func TestUpsertPurchaseOrdersKeepsExistingLink(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPurchaseOrders(ctx, []models.PurchaseOrder{
		{PONumber: "P1", JobID: "J-1", Vendor: "Acme", Amount: decimal.RequireFromString("12.50")},
	}))
	require.NoError(t, s.UpsertPurchaseOrders(ctx, []models.PurchaseOrder{
		{PONumber: "P1", Vendor: "Acme Metals", Amount: decimal.RequireFromString("15")},
		{PONumber: "P2", Vendor: "Blue"},
	}))

	p1, err := s.GetPurchaseOrder(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "J-1", p1.JobID)
	assert.Equal(t, "Acme Metals", p1.Vendor)
	assert.True(t, p1.Amount.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, "open", p1.Status)

	unlinked, err := s.ListPurchaseOrders(ctx, store.POFilter{Unlinked: true})
	require.NoError(t, err)
	require.Len(t, unlinked, 1)
	assert.Equal(t, "P2", unlinked[0].PONumber)
}

func TestLinkPurchaseOrders(t *testing.T) {
	s, c := setup(t)
	ctx := context.Background()
	testutil.Insert(t, c, database.TableJobs, tables.Row{"job_number": "J-2024-105", "title": "Frame"})
	testutil.Insert(t, c, database.TablePurchaseOrders,
		tables.Row{"po_number": "P1", "description": "Steel for J-2024-105"},
		tables.Row{"po_number": "P2", "description": "Office supplies"},
	)

	dry, err := s.LinkPurchaseOrders(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, dry.Linked)
	p1, _ := s.GetPurchaseOrder(ctx, "P1")
	assert.Empty(t, p1.JobID)

	res, err := s.LinkPurchaseOrders(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 1, res.Linked)
	assert.Equal(t, 1, res.Unmatched)
	assert.Equal(t, map[string]string{"P1": "J-2024-105"}, res.Links)

	p1, _ = s.GetPurchaseOrder(ctx, "P1")
	assert.Equal(t, "J-2024-105", p1.JobID)

	again, err := s.LinkPurchaseOrders(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Linked)
}

func TestShipmentDeliveryStampsReceivedDate(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	sh, err := s.CreateShipment(ctx, models.ShipmentLog{PONumber: "P1", Carrier: "UPS"})
	require.NoError(t, err)
	assert.Equal(t, "pending", sh.Status)

	require.NoError(t, s.UpdateShipmentStatus(ctx, sh.ID, "delivered"))
	list, err := s.ListShipments(ctx, "delivered", "P1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2024-03-15T09:30:00Z", list[0].ReceivedDate)

	assert.ErrorIs(t, s.UpdateShipmentStatus(ctx, "missing", "delivered"), store.ErrNotFound)
}

func TestNCRLifecycle(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	first, err := s.CreateNCR(ctx, models.NCR{JobNumber: "J-1", Issue: "Burr on edge", FinancialImpact: decimal.NewFromInt(100)})
	require.NoError(t, err)
	second, err := s.CreateNCR(ctx, models.NCR{JobNumber: "J-1", Issue: "Wrong bore", FinancialImpact: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "open", first.Status)
	assert.Nil(t, first.ResolvedAt)

	resolved := "resolved"
	cause := "Worn tool"
	n, err := s.UpdateNCR(ctx, first.ID, store.NCRUpdate{Status: &resolved, RootCause: &cause})
	require.NoError(t, err)
	assert.Equal(t, "resolved", n.Status)
	assert.Equal(t, "Worn tool", n.RootCause)
	require.NotNil(t, n.ResolvedAt)
	assert.Equal(t, "2024-03-15T09:30:00Z", *n.ResolvedAt)

	reopened := "open"
	n, err = s.UpdateNCR(ctx, first.ID, store.NCRUpdate{Status: &reopened})
	require.NoError(t, err)
	assert.Nil(t, n.ResolvedAt)

	n, err = s.UpdateNCR(ctx, second.ID, store.NCRUpdate{Status: &resolved})
	require.NoError(t, err)

	sum, err := s.NCRSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.ByStatus["open"])
	assert.Equal(t, 1, sum.ByStatus["resolved"])
	assert.True(t, sum.FinancialImpact.Equal(decimal.NewFromInt(150)))
	assert.True(t, sum.OpenImpact.Equal(decimal.NewFromInt(100)))

	_, err = s.GetNCR(ctx, "NCR-1999-001")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJobDetailsAndSummary(t *testing.T) {
	s, c := setup(t)
	ctx := context.Background()
	_, err := s.UpsertJob(ctx, models.Job{JobNumber: "J-1", Title: "Frame", Progress: 10})
	require.NoError(t, err)
	require.NoError(t, s.UpsertSAPOperations(ctx, []models.Operation{
		{Order: "J-1", OperationNo: "0010", WorkCenter: "CNC-1", PlannedWork: 10, ActualWork: 10},
		{Order: "J-1", OperationNo: "0020", WorkCenter: "WELD", PlannedWork: 10, ActualWork: 5},
	}))
	testutil.Insert(t, c, database.TablePurchaseOrders,
		tables.Row{"po_number": "P1", "job_id": "J-1", "amount": "20.25"},
		tables.Row{"po_number": "P2", "job_id": "J-1", "amount": "4.75"},
	)
	_, err = s.CreateNCR(ctx, models.NCR{JobNumber: "J-1", Issue: "Porosity"})
	require.NoError(t, err)
	_, err = s.AddNote(ctx, models.JobNote{JobNumber: "J-1", Body: "Material arrived", Author: "bob"})
	require.NoError(t, err)
	_, err = s.AddReminder(ctx, models.Reminder{JobNumber: "J-1", Message: "Call customer", RemindAt: "2024-03-18"})
	require.NoError(t, err)

	j, err := s.JobDetails(ctx, "J-1")
	require.NoError(t, err)
	assert.Len(t, j.SAPData, 2)
	assert.Len(t, j.PurchaseOrders, 2)
	assert.Len(t, j.NCRs, 1)
	assert.Len(t, j.Notes, 1)
	assert.Len(t, j.Reminders, 1)

	sum, err := s.JobSummary(ctx, "J-1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Operations)
	assert.Equal(t, 1, sum.CompletedOps)
	assert.Equal(t, 75, sum.Progress)
	assert.Equal(t, []string{"CNC-1", "WELD"}, sum.WorkCenters)
	assert.True(t, sum.PurchaseTotal.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, 1, sum.OpenNCRs)

	_, err = s.AddNote(ctx, models.JobNote{JobNumber: "J-404", Body: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDashboard(t *testing.T) {
	s, c := setup(t)
	ctx := context.Background()
	testutil.Insert(t, c, database.TableJobs,
		tables.Row{"job_number": "J-1", "status": "in_progress", "due_date": "2024-03-01"},
		tables.Row{"job_number": "J-2", "status": "completed", "due_date": "2024-03-01"},
		tables.Row{"job_number": "J-3", "status": "not_started", "due_date": "2024-04-01"},
	)
	testutil.Insert(t, c, database.TablePurchaseOrders,
		tables.Row{"po_number": "P1", "status": "open", "amount": "100"},
		tables.Row{"po_number": "P2", "status": "received", "amount": "50"},
	)
	testutil.Insert(t, c, database.TableShipmentLogs,
		tables.Row{"id": "S1", "status": "in_transit"},
		tables.Row{"id": "S2", "status": "delivered"},
	)
	testutil.Insert(t, c, database.TableNCRs,
		tables.Row{"id": "NCR-2024-001", "issue": "x", "status": "investigating"},
		tables.Row{"id": "NCR-2024-002", "issue": "y", "status": "closed"},
	)

	d, err := s.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, d.TotalJobs)
	assert.Equal(t, 1, d.JobsByStatus["completed"])
	assert.Equal(t, 1, d.OverdueJobs)
	assert.Equal(t, 1, d.OpenNCRs)
	assert.Equal(t, 1, d.OpenPOs)
	assert.True(t, d.OpenPOValue.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, d.InTransitShipments)
}

func TestMissingTablesReadAsEmpty(t *testing.T) {
	c := testutil.SetupEmptyDB(t)
	s := testutil.NewStore(t, c)
	ctx := context.Background()

	jobs, err := s.ListJobs(ctx, store.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	ops, err := s.AllOperations(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)

	n, err := s.Count(ctx, database.TableNCRs)
	require.NoError(t, err)
	assert.Zero(t, n)

	d, err := s.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, d.TotalJobs)
}

func TestJobSideWritesInvalidateCache(t *testing.T) {
	c := testutil.SetupTestDB(t)
	qc := cache.New(time.Minute)
	s := store.New(database.NewBackend(c, c, zap.NewNop()), qc, zap.NewNop())
	ctx := context.Background()
	_, err := s.UpsertJob(ctx, models.Job{JobNumber: "J-1", Title: "Frame"})
	require.NoError(t, err)

	warm := func(t *testing.T) {
		t.Helper()
		_, err := s.Dashboard(ctx)
		require.NoError(t, err)
		require.Positive(t, qc.Len())
	}

	writes := map[string]func() error{
		"note": func() error {
			_, err := s.AddNote(ctx, models.JobNote{JobNumber: "J-1", Body: "check weld", Author: "alice"})
			return err
		},
		"reminder": func() error {
			_, err := s.AddReminder(ctx, models.Reminder{JobNumber: "J-1", Message: "call vendor", RemindAt: "2024-03-20"})
			return err
		},
		"timeline": func() error {
			_, err := s.AddTimelineEvent(ctx, models.TimelineEvent{JobNumber: "J-1", Description: "inspected"})
			return err
		},
		"vendor operation": func() error {
			_, err := s.UpsertVendorOperation(ctx, models.VendorOperation{JobNumber: "J-1", Vendor: "Platers Inc", Operation: "Anodize"})
			return err
		},
	}
	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			warm(t)
			require.NoError(t, write())
			assert.Equal(t, 0, qc.Len())
		})
	}
}

func TestWorkCenterNamesUnionsSnapshotAndOperations(t *testing.T) {
	s, c := setup(t)
	ctx := context.Background()
	testutil.Insert(t, c, database.TableWorkCenters, tables.Row{"name": "PAINT"}, tables.Row{"name": "CNC-1"})
	require.NoError(t, s.UpsertSAPOperations(ctx, []models.Operation{
		{Order: "J-1", OperationNo: "0010", WorkCenter: "CNC-1", PlannedWork: 4},
		{Order: "J-1", OperationNo: "0020", WorkCenter: "WELD", PlannedWork: 2},
	}))

	names, err := s.WorkCenterNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"CNC-1", "PAINT", "WELD"}, names)
}
