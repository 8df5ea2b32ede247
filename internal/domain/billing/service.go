package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/domain/catalog"
	"github.com/lims/lims/internal/domain/result"
	"github.com/lims/lims/internal/platform/notification"
)

// Services looks up catalog entries at billing time.
type Services interface {
	Get(ctx context.Context, id string) (*catalog.LabService, error)
}

// Patients checks that the billed patient exists and names them.
type Patients interface {
	DisplayName(ctx context.Context, id string) string
	Exists(ctx context.Context, id string) (bool, error)
}

// PasswordVerifier guards bulk deletion.
type PasswordVerifier interface {
	VerifyDeletionPassword(ctx context.Context, password string) error
}

type Service struct {
	repo      Repository
	services  Services
	patients  Patients
	passwords PasswordVerifier
	notifier  notification.Notifier
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, services Services, patients Patients, passwords PasswordVerifier, notifier notification.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		services:  services,
		patients:  patients,
		passwords: passwords,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateInvoice bills the selected services. Ids that no longer resolve in
// the catalog are skipped; if none resolve the invoice is rejected. One
// pending result per billed line is written with the invoice.
func (s *Service) CreateInvoice(ctx context.Context, req CreateRequest) (*Invoice, []*result.Result, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	ok, err := s.patients.Exists(ctx, req.PatientID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrPatientNotFound, req.PatientID)
	}

	now := s.now()
	inv := &Invoice{
		ID:            NewInvoiceID(),
		PatientID:     req.PatientID,
		DiscountValue: req.DiscountValue,
		DiscountType:  req.DiscountType,
		BillingType:   req.BillingType,
		ShowPrices:    req.ShowPrices,
		Status:        StatusPending,
		CreatedAt:     now,
	}
	var results []*result.Result
	for _, id := range req.ServiceIDs {
		svc, err := s.services.Get(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			s.logger.Warn().Str("service_id", id).Msg("skipping unknown service on invoice")
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		inv.Lines = append(inv.Lines, Line{ServiceID: svc.ID, ServiceName: svc.Name, Price: svc.Price})
		inv.Subtotal += svc.Price
		// Creation times are staggered so results keep the billing order.
		created := now.Add(time.Duration(len(results)) * time.Microsecond)
		results = append(results, result.NewPending(inv.ID, inv.PatientID, svc.ID, svc.TemplateID != "", created))
	}
	if len(inv.Lines) == 0 {
		return nil, nil, ErrNoServices
	}
	inv.Total = ApplyDiscount(inv.Subtotal, inv.DiscountValue, inv.DiscountType)

	if err := s.repo.Create(ctx, inv, results); err != nil {
		return nil, nil, err
	}
	return inv, results, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns invoices newest first.
func (s *Service) List(ctx context.Context) ([]*Invoice, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)
	return items, nil
}

func sortNewestFirst(items []*Invoice) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
}

// MarkPaid records payment. Paying twice keeps the first payment time.
func (s *Service) MarkPaid(ctx context.Context, id string) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusPaid {
		return inv, nil
	}
	now := s.now()
	inv.Status = StatusPaid
	inv.PaidAt = &now
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Progress is one invoice with its result counts.
type Progress struct {
	Invoice     *Invoice `json:"invoice"`
	PatientName string   `json:"patient_name"`
	Completed   int      `json:"completed"`
	Total       int      `json:"total"`
}

func (p Progress) Done() bool { return p.Total > 0 && p.Completed == p.Total }

// Worklist splits invoices by whether all their results are completed.
type Worklist struct {
	Pending   []Progress `json:"pending"`
	Completed []Progress `json:"completed"`
}

// Worklist returns both lists newest first. Invoices without results are
// left out.
func (s *Service) Worklist(ctx context.Context) (*Worklist, error) {
	invoices, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	byInvoice, err := s.resultsByInvoice(ctx)
	if err != nil {
		return nil, err
	}
	wl := &Worklist{Pending: []Progress{}, Completed: []Progress{}}
	for _, inv := range invoices {
		rs := byInvoice[inv.ID]
		if len(rs) == 0 {
			continue
		}
		p := Progress{
			Invoice:     inv,
			PatientName: s.patients.DisplayName(ctx, inv.PatientID),
			Completed:   result.CountCompleted(rs),
			Total:       len(rs),
		}
		if p.Done() {
			wl.Completed = append(wl.Completed, p)
		} else {
			wl.Pending = append(wl.Pending, p)
		}
	}
	return wl, nil
}

func (s *Service) resultsByInvoice(ctx context.Context) (map[string][]*result.Result, error) {
	all, err := s.repo.ListResults(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*result.Result)
	for _, r := range all {
		out[r.InvoiceID] = append(out[r.InvoiceID], r)
	}
	return out, nil
}

// Purge deletes records after checking the deletion password. The
// completed scope removes invoices whose results are all completed,
// together with those results. The all scope removes every invoice and
// every result. It returns the number of invoices removed.
func (s *Service) Purge(ctx context.Context, scope PurgeScope, password string) (int, error) {
	if scope != PurgeCompleted && scope != PurgeAll {
		return 0, ErrInvalidScope
	}
	if err := s.passwords.VerifyDeletionPassword(ctx, password); err != nil {
		return 0, err
	}
	invoices, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	byInvoice, err := s.resultsByInvoice(ctx)
	if err != nil {
		return 0, err
	}

	var invoiceIDs, resultIDs []string
	for _, inv := range invoices {
		if scope == PurgeCompleted && !result.AllCompleted(byInvoice[inv.ID]) {
			continue
		}
		invoiceIDs = append(invoiceIDs, inv.ID)
		for _, r := range byInvoice[inv.ID] {
			resultIDs = append(resultIDs, r.ID)
		}
		delete(byInvoice, inv.ID)
	}
	if scope == PurgeAll {
		for _, rs := range byInvoice {
			for _, r := range rs {
				resultIDs = append(resultIDs, r.ID)
			}
		}
	}
	if len(invoiceIDs) == 0 {
		return 0, nil
	}
	if err := s.repo.Purge(ctx, invoiceIDs, resultIDs); err != nil {
		return 0, err
	}

	n := len(invoiceIDs)
	msg := fmt.Sprintf("Deleted %d completed records.", n)
	if scope == PurgeAll {
		msg = fmt.Sprintf("Deleted ALL %d records from the system.", n)
	}
	s.logger.Info().Str("scope", string(scope)).Int("invoices", n).Int("results", len(resultIDs)).Msg("records purged")
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, notification.Event{Message: msg}); err != nil {
			s.logger.Error().Err(err).Msg("purge notification failed")
		}
	}
	return n, nil
}
