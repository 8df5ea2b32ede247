package result

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/domain/template"
	"github.com/lims/lims/internal/platform/notification"
)

// Catalog resolves the optional template id of a service.
type Catalog interface {
	TemplateIDFor(ctx context.Context, serviceID string) (string, bool)
}

// Templates fetches templates; a nil template with nil error means the id
// is unknown.
type Templates interface {
	Lookup(ctx context.Context, id string) (*template.Template, error)
}

// Patients names the patient in notification messages.
type Patients interface {
	DisplayName(ctx context.Context, patientID string) string
}

type Service struct {
	repo      Repository
	catalog   Catalog
	templates Templates
	patients  Patients
	notifier  notification.Notifier
	logger    zerolog.Logger
	locks     *keyedMutex
	now       func() time.Time
}

func NewService(repo Repository, catalog Catalog, templates Templates, patients Patients, notifier notification.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		catalog:   catalog,
		templates: templates,
		patients:  patients,
		notifier:  notifier,
		logger:    logger,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Result, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceID string) ([]*Result, error) {
	return s.repo.ListByInvoice(ctx, invoiceID)
}

func (s *Service) List(ctx context.Context) ([]*Result, error) {
	return s.repo.List(ctx)
}

// TemplateFor resolves the template bound to a result through its service.
// Services without a template, and dangling template ids, yield nil.
func (s *Service) TemplateFor(ctx context.Context, r *Result) (*template.Template, error) {
	tid, ok := s.catalog.TemplateIDFor(ctx, r.ServiceID)
	if !ok {
		return nil, nil
	}
	return s.templates.Lookup(ctx, tid)
}

// apply stores v on r and derives status from it. reportedBy records the
// last editor; reportDate exists only while the result is completed.
func (s *Service) apply(r *Result, v Value, actor string, tpl *template.Template, now time.Time) {
	r.Value = v
	r.ReportedBy = actor
	if IsComplete(tpl, v) {
		r.Status = StatusCompleted
		r.ReportDate = &now
	} else {
		r.Status = StatusPending
		r.ReportDate = nil
	}
}

// checkShape rejects a value whose form disagrees with the service: a
// template takes a field map, anything else takes free text.
func checkShape(tpl *template.Template, v Value) error {
	switch {
	case tpl != nil && !v.IsStructured():
		return fmt.Errorf("%w: expected field values", ErrInvalidValue)
	case tpl == nil && v.IsStructured():
		return fmt.Errorf("%w: expected text", ErrInvalidValue)
	}
	return nil
}

// SaveValue replaces one result's value, recomputes its status and raises
// the invoice-ready notification when this save completes the invoice.
func (s *Service) SaveValue(ctx context.Context, resultID string, v Value, actor string) (*Result, error) {
	current, err := s.repo.GetByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	saved, err := s.SaveInvoice(ctx, current.InvoiceID, map[string]Value{resultID: v}, actor)
	if err != nil {
		return nil, err
	}
	for _, r := range saved {
		if r.ID == resultID {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

// SaveInvoice saves several results of one invoice. Only results whose
// value or status changes are written, all in one datastore operation. The
// aggregate before/after comparison covers the whole batch, so at most one
// notification is raised. It returns every result of the invoice.
func (s *Service) SaveInvoice(ctx context.Context, invoiceID string, values map[string]Value, actor string) ([]*Result, error) {
	unlock := s.locks.Lock(invoiceID)
	defer unlock()

	siblings, err := s.repo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Result, len(siblings))
	for _, r := range siblings {
		byID[r.ID] = r
	}
	for id := range values {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: %s not in %s", ErrNotInInvoice, id, invoiceID)
		}
	}

	wasComplete := AllCompleted(siblings)
	now := s.now()

	var changed []*Result
	for _, r := range siblings {
		v, ok := values[r.ID]
		if !ok {
			continue
		}
		tpl, err := s.TemplateFor(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("resolve template for %s: %w", r.ID, err)
		}
		if err := checkShape(tpl, v); err != nil {
			return nil, fmt.Errorf("%w: %s", err, r.ID)
		}
		next := *r
		s.apply(&next, v, actor, tpl, now)
		if next.Status == r.Status && next.Value.Equal(r.Value) {
			continue
		}
		*r = next
		changed = append(changed, r)
	}

	if len(changed) > 0 {
		if err := s.repo.UpdateMany(ctx, changed); err != nil {
			return nil, err
		}
	}

	if !wasComplete && AllCompleted(siblings) {
		s.notifyReady(ctx, invoiceID, siblings[0].PatientID)
	}
	return siblings, nil
}

func (s *Service) notifyReady(ctx context.Context, invoiceID, patientID string) {
	name := patientID
	if s.patients != nil {
		name = s.patients.DisplayName(ctx, patientID)
	}
	ev := notification.Event{
		Message: fmt.Sprintf("Results for %s are ready to print", name),
		Link:    "/invoice/print/" + invoiceID,
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("invoice_id", invoiceID).Msg("invoice ready notification failed")
	}
}
