package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/Pallinder/go-randomdata"

	"github.com/lims/lims/internal/platform/kv"
)

func newTestService() *Service {
	return NewService(NewKVRepo(kv.NewMemory()))
}

func randomPatient() *Patient {
	return &Patient{
		Name:       randomdata.FullName(randomdata.RandomGender),
		DocumentID: randomdata.StringNumber(5, ""),
		Phone:      randomdata.PhoneNumber(),
		Email:      randomdata.Email(),
		Address:    randomdata.Address(),
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	p := randomPatient()
	p.Gender = "Female"
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Errorf("expected id and timestamps, got %+v", p)
	}
	if p.Gender != GenderFemale {
		t.Errorf("expected gender to be normalized, got %q", p.Gender)
	}

	got, err := svc.GetByDocumentID(ctx, " "+p.DocumentID+" ")
	if err != nil {
		t.Fatalf("GetByDocumentID: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("expected %s, got %s", p.ID, got.ID)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc := newTestService()
	tests := map[string]func(p *Patient){
		"missing name":     func(p *Patient) { p.Name = "  " },
		"missing document": func(p *Patient) { p.DocumentID = "" },
		"bad gender":       func(p *Patient) { p.Gender = "unknown" },
		"bad birth date":   func(p *Patient) { p.BirthDate = "15/05/1985" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := randomPatient()
			mutate(p)
			if err := svc.Create(context.Background(), p); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestService_DuplicateDocument(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	first := randomPatient()
	if err := svc.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	second := randomPatient()
	second.DocumentID = first.DocumentID
	if err := svc.Create(ctx, second); !errors.Is(err, ErrDuplicateDocument) {
		t.Errorf("expected ErrDuplicateDocument, got %v", err)
	}

	// Updating a patient with its own document id is fine.
	first.Phone = "555-0000"
	if err := svc.Update(ctx, first); err != nil {
		t.Errorf("Update: %v", err)
	}
}

func TestService_UpdateKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	p := randomPatient()
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	created := p.CreatedAt

	changed := *p
	changed.Name = "Ana Garcia"
	changed.CreatedAt = changed.CreatedAt.AddDate(-1, 0, 0)
	if err := svc.Update(ctx, &changed); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := svc.Get(ctx, p.ID)
	if got.Name != "Ana Garcia" || !got.CreatedAt.Equal(created) {
		t.Errorf("unexpected patient after update %+v", got)
	}
}

func TestService_ListAndSearch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	for _, name := range []string{"carlos Rodriguez", "Ana Garcia", "Beatriz Lopez"} {
		p := randomPatient()
		p.Name = name
		if err := svc.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Ana Garcia" || all[2].Name != "carlos Rodriguez" {
		t.Errorf("unexpected order %v", []string{all[0].Name, all[1].Name, all[2].Name})
	}

	found, _ := svc.List(ctx, "GARC")
	if len(found) != 1 || found[0].Name != "Ana Garcia" {
		t.Errorf("expected one match, got %d", len(found))
	}
}

func TestService_DisplayName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	p := randomPatient()
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := svc.DisplayName(ctx, p.ID); got != p.Name {
		t.Errorf("expected %q, got %q", p.Name, got)
	}
	if got := svc.DisplayName(ctx, "PAT-GONE"); got != UnknownPatient {
		t.Errorf("expected fallback name, got %q", got)
	}
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	p := randomPatient()
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestService_Exists(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	p := randomPatient()
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, err := svc.Exists(ctx, p.ID); !ok || err != nil {
		t.Errorf("Exists(%s) = %v, %v", p.ID, ok, err)
	}
	if ok, err := svc.Exists(ctx, "PAT-NONE"); ok || err != nil {
		t.Errorf("Exists(PAT-NONE) = %v, %v", ok, err)
	}
}
