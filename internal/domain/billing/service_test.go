package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lims/lims/internal/domain/catalog"
	"github.com/lims/lims/internal/domain/patient"
	"github.com/lims/lims/internal/domain/result"
	"github.com/lims/lims/internal/domain/settings"
	"github.com/lims/lims/internal/platform/kv"
	"github.com/lims/lims/internal/platform/notification"
)

type fixedPassword string

func (p fixedPassword) VerifyDeletionPassword(_ context.Context, pw string) error {
	if pw != string(p) {
		return settings.ErrWrongPassword
	}
	return nil
}

type recordingNotifier struct {
	events []notification.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev notification.Event) error {
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	svc      *Service
	store    *kv.Memory
	notifier *recordingNotifier
	patient  *patient.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := kv.NewMemory()

	services := catalog.NewService(catalog.NewKVRepo(store), zerolog.Nop())
	for _, s := range []*catalog.LabService{
		{ID: "SRV-CBC", Name: "Complete blood count", Price: 25000, TemplateID: "TPL-HEMO"},
		{ID: "SRV-LIP", Name: "Lipid panel", Price: 40000},
		{ID: "SRV-GLU", Name: "Fasting glucose", Price: 15000},
	} {
		require.NoError(t, services.Create(ctx, s))
	}
	patients := patient.NewService(patient.NewKVRepo(store))
	p := &patient.Patient{Name: "Ana Garcia", DocumentID: "12345678"}
	require.NoError(t, patients.Create(ctx, p))

	n := &recordingNotifier{}
	svc := NewService(NewKVRepo(store), services, patients, fixedPassword("purge-me"), n, zerolog.Nop())
	return &fixture{svc: svc, store: store, notifier: n, patient: p}
}

func (f *fixture) invoice(t *testing.T, serviceIDs ...string) (*Invoice, []*result.Result) {
	t.Helper()
	inv, rs, err := f.svc.CreateInvoice(context.Background(), CreateRequest{PatientID: f.patient.ID, ServiceIDs: serviceIDs})
	require.NoError(t, err)
	return inv, rs
}

func (f *fixture) complete(t *testing.T, rs ...*result.Result) {
	t.Helper()
	coll := result.NewCollection(f.store)
	for _, r := range rs {
		now := time.Now().UTC()
		r.Status = result.StatusCompleted
		r.ReportDate = &now
		require.NoError(t, coll.Put(context.Background(), r.ID, r))
	}
}

func TestCreateInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	inv, rs, err := f.svc.CreateInvoice(ctx, CreateRequest{
		PatientID:     f.patient.ID,
		ServiceIDs:    []string{"SRV-CBC", "SRV-GONE", "SRV-LIP"},
		DiscountValue: 10,
	})
	require.NoError(t, err)
	require.Len(t, inv.Lines, 2, "unknown services are skipped")
	require.Equal(t, 65000.0, inv.Subtotal)
	require.InDelta(t, 58500.0, inv.Total, 0.001)
	require.Equal(t, StatusPending, inv.Status)
	require.Equal(t, DiscountPercentage, inv.DiscountType)
	require.Equal(t, BillingParticular, inv.BillingType)

	require.Len(t, rs, 2)
	require.True(t, rs[0].Value.IsStructured(), "templated service gets an empty map")
	require.False(t, rs[1].Value.IsStructured(), "plain service gets empty text")

	stored, err := result.NewKVRepo(f.store).ListByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "SRV-CBC", stored[0].ServiceID, "results keep billing order")
	for _, r := range stored {
		require.Equal(t, result.StatusPending, r.Status)
		require.Nil(t, r.ReportDate)
		require.Equal(t, f.patient.ID, r.PatientID)
	}
}

func TestCreateInvoice_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.svc.CreateInvoice(ctx, CreateRequest{PatientID: f.patient.ID, ServiceIDs: []string{"SRV-GONE"}})
	require.ErrorIs(t, err, ErrNoServices)

	_, _, err = f.svc.CreateInvoice(ctx, CreateRequest{PatientID: "PAT-NONE", ServiceIDs: []string{"SRV-GLU"}})
	require.ErrorIs(t, err, ErrPatientNotFound)

	f.store.FailWrites = true
	_, _, err = f.svc.CreateInvoice(ctx, CreateRequest{PatientID: f.patient.ID, ServiceIDs: []string{"SRV-GLU"}})
	require.Error(t, err)
	f.store.FailWrites = false

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv, _ := f.invoice(t, "SRV-GLU")

	paid, err := f.svc.MarkPaid(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	first := *paid.PaidAt

	again, err := f.svc.MarkPaid(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, again.PaidAt.Equal(first))

	_, err = f.svc.MarkPaid(ctx, "INV-NONE")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestWorklist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pending, _ := f.invoice(t, "SRV-GLU", "SRV-LIP")
	done, doneResults := f.invoice(t, "SRV-GLU")
	f.complete(t, doneResults...)

	wl, err := f.svc.Worklist(ctx)
	require.NoError(t, err)
	require.Len(t, wl.Pending, 1)
	require.Len(t, wl.Completed, 1)
	require.Equal(t, pending.ID, wl.Pending[0].Invoice.ID)
	require.Equal(t, 0, wl.Pending[0].Completed)
	require.Equal(t, 2, wl.Pending[0].Total)
	require.Equal(t, done.ID, wl.Completed[0].Invoice.ID)
	require.Equal(t, "Ana Garcia", wl.Completed[0].PatientName)
}

func TestPurge_Completed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	keep, keepResults := f.invoice(t, "SRV-GLU", "SRV-LIP")
	f.complete(t, keepResults[0])
	gone, goneResults := f.invoice(t, "SRV-GLU")
	f.complete(t, goneResults...)

	_, err := f.svc.Purge(ctx, PurgeCompleted, "wrong")
	require.ErrorIs(t, err, settings.ErrWrongPassword)
	require.Empty(t, f.notifier.events)

	n, err := f.svc.Purge(ctx, PurgeCompleted, "purge-me")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = f.svc.Get(ctx, gone.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Get(ctx, keep.ID)
	require.NoError(t, err)

	results := result.NewKVRepo(f.store)
	left, err := results.List(ctx)
	require.NoError(t, err)
	require.Len(t, left, 2)

	require.Len(t, f.notifier.events, 1)
	require.Equal(t, "Deleted 1 completed records.", f.notifier.events[0].Message)
}

func TestPurge_All(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.invoice(t, "SRV-GLU")
	f.invoice(t, "SRV-CBC", "SRV-LIP")

	// A result whose invoice is already gone.
	orphan := result.NewPending("INV-OLD", f.patient.ID, "SRV-GLU", false, time.Now())
	require.NoError(t, result.NewCollection(f.store).Put(ctx, orphan.ID, orphan))

	n, err := f.svc.Purge(ctx, PurgeAll, "purge-me")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	left, err := result.NewKVRepo(f.store).List(ctx)
	require.NoError(t, err)
	require.Empty(t, left)
	require.Equal(t, "Deleted ALL 2 records from the system.", f.notifier.events[0].Message)

	n, err = f.svc.Purge(ctx, PurgeAll, "purge-me")
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, f.notifier.events, 1, "nothing deleted, nothing announced")
}

func TestPurge_InvalidScope(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Purge(context.Background(), "some", "purge-me")
	require.ErrorIs(t, err, ErrInvalidScope)
}
