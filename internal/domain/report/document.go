package report

import (
	"context"
	"fmt"
	"time"

	"github.com/lims/lims/internal/domain/billing"
	"github.com/lims/lims/internal/domain/identity"
	"github.com/lims/lims/internal/domain/patient"
	"github.com/lims/lims/internal/domain/result"
	"github.com/lims/lims/internal/domain/settings"
	"github.com/lims/lims/internal/domain/template"
)

const (
	TitleResults = "RESULTS REPORT"
	TitleInvoice = "INVOICE"

	// NoData is printed for a completed free-text result left blank.
	NoData = "No data"
)

type Invoices interface {
	Get(ctx context.Context, id string) (*billing.Invoice, error)
}

type Results interface {
	Get(ctx context.Context, id string) (*result.Result, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*result.Result, error)
	TemplateFor(ctx context.Context, r *result.Result) (*template.Template, error)
}

type Patients interface {
	Get(ctx context.Context, id string) (*patient.Patient, error)
}

type Company interface {
	Company(ctx context.Context) (*settings.CompanyInfo, error)
}

type Signatures interface {
	Signature(ctx context.Context, userID string) (identity.SignatureBlock, bool)
}

// PatientBlock is the patient header of a printed document. Dependency is
// only filled for invoices billed to a dependency.
type PatientBlock struct {
	Name        string              `json:"name"`
	DocumentID  string              `json:"document_id"`
	Address     string              `json:"address,omitempty"`
	Email       string              `json:"email,omitempty"`
	Phone       string              `json:"phone,omitempty"`
	BillingType billing.BillingType `json:"billing_type"`
	Dependency  string              `json:"dependency,omitempty"`
}

// Line is a requested service. Price is nil when prices are hidden.
type Line struct {
	ServiceName string   `json:"service_name"`
	Price       *float64 `json:"price,omitempty"`
}

type Totals struct {
	Subtotal       float64              `json:"subtotal"`
	DiscountValue  float64              `json:"discount_value"`
	DiscountType   billing.DiscountType `json:"discount_type"`
	DiscountAmount float64              `json:"discount_amount"`
	Total          float64              `json:"total"`
}

// Section is one completed result on a results report.
type Section struct {
	ResultID    string                   `json:"result_id"`
	ServiceID   string                   `json:"service_id"`
	ServiceName string                   `json:"service_name"`
	Rows        []Row                    `json:"rows"`
	Signature   *identity.SignatureBlock `json:"signature,omitempty"`
}

// Document is everything needed to print an invoice or its results.
type Document struct {
	Title      string               `json:"title"`
	InvoiceID  string               `json:"invoice_id"`
	Company    settings.CompanyInfo `json:"company"`
	Patient    PatientBlock         `json:"patient"`
	IssuedAt   time.Time            `json:"issued_at"`
	ReportDate *time.Time           `json:"report_date,omitempty"`
	ShowPrices bool                 `json:"show_prices"`
	Lines      []Line               `json:"lines,omitempty"`
	Totals     *Totals              `json:"totals,omitempty"`
	Sections   []Section            `json:"sections,omitempty"`
}

type Service struct {
	invoices   Invoices
	results    Results
	patients   Patients
	company    Company
	signatures Signatures
}

func NewService(invoices Invoices, results Results, patients Patients, company Company, signatures Signatures) *Service {
	return &Service{
		invoices:   invoices,
		results:    results,
		patients:   patients,
		company:    company,
		signatures: signatures,
	}
}

// InvoiceReport assembles the printable document of an invoice. Once any
// result is completed the document becomes a results report: it carries
// one section per completed result and no price list.
func (s *Service) InvoiceReport(ctx context.Context, invoiceID string) (*Document, error) {
	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.Get(ctx, inv.PatientID)
	if err != nil {
		return nil, fmt.Errorf("patient of invoice %s: %w", inv.ID, err)
	}
	company, err := s.company.Company(ctx)
	if err != nil {
		return nil, err
	}
	results, err := s.results.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	completed := result.CountCompleted(results) > 0
	doc := &Document{
		Title:      TitleInvoice,
		InvoiceID:  inv.ID,
		Company:    *company,
		Patient:    patientBlock(p, inv.BillingType),
		IssuedAt:   inv.CreatedAt,
		ShowPrices: showPrices(inv, completed),
	}
	if !completed {
		doc.Lines = priceList(inv, doc.ShowPrices)
		if doc.ShowPrices {
			doc.Totals = &Totals{
				Subtotal:       inv.Subtotal,
				DiscountValue:  inv.DiscountValue,
				DiscountType:   inv.DiscountType,
				DiscountAmount: inv.DiscountAmount(),
				Total:          inv.Total,
			}
		}
		return doc, nil
	}

	doc.Title = TitleResults
	names := make(map[string]string, len(inv.Lines))
	for _, l := range inv.Lines {
		names[l.ServiceID] = l.ServiceName
	}
	for _, r := range results {
		if !r.IsCompleted() {
			continue
		}
		if doc.ReportDate == nil && r.ReportDate != nil {
			d := *r.ReportDate
			doc.ReportDate = &d
		}
		sec, err := s.section(ctx, r, names[r.ServiceID])
		if err != nil {
			return nil, err
		}
		doc.Sections = append(doc.Sections, sec)
	}
	return doc, nil
}

func (s *Service) section(ctx context.Context, r *result.Result, serviceName string) (Section, error) {
	tpl, err := s.results.TemplateFor(ctx, r)
	if err != nil {
		return Section{}, err
	}
	rows := Render(tpl, r.Value)
	if len(rows) == 1 && rows[0].Kind == RowText && rows[0].Value == "" {
		rows[0].Value = NoData
	}
	sec := Section{ResultID: r.ID, ServiceID: r.ServiceID, ServiceName: serviceName, Rows: rows}
	if sig, ok := s.signatures.Signature(ctx, r.ReportedBy); ok {
		sec.Signature = &sig
	}
	return sec, nil
}

// showPrices honors the invoice's own choice. Invoices that never chose
// show prices until a result is completed.
func showPrices(inv *billing.Invoice, completed bool) bool {
	if inv.ShowPrices != nil {
		return *inv.ShowPrices
	}
	return !completed
}

func priceList(inv *billing.Invoice, withPrices bool) []Line {
	out := make([]Line, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		line := Line{ServiceName: l.ServiceName}
		if withPrices {
			price := l.Price
			line.Price = &price
		}
		out = append(out, line)
	}
	return out
}

func patientBlock(p *patient.Patient, bt billing.BillingType) PatientBlock {
	b := PatientBlock{
		Name:        p.Name,
		DocumentID:  p.DocumentID,
		Address:     p.Address,
		Email:       p.Email,
		Phone:       p.Phone,
		BillingType: bt,
	}
	if bt == billing.BillingDependency {
		b.Dependency = p.Dependency
	}
	return b
}

// EntryForm is the data-entry view of one result.
type EntryForm struct {
	Result   *result.Result     `json:"result"`
	Template *template.Template `json:"template,omitempty"`
	Fields   []FormField        `json:"fields"`
}

func (s *Service) EntryForm(ctx context.Context, resultID string) (*EntryForm, error) {
	r, err := s.results.Get(ctx, resultID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.results.TemplateFor(ctx, r)
	if err != nil {
		return nil, err
	}
	return &EntryForm{Result: r, Template: tpl, Fields: Form(tpl, r.Value)}, nil
}
