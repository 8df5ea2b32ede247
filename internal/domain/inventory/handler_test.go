package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_CreateAndList(t *testing.T) {
	svc, _ := newTestService()
	h, e := NewHandler(svc), echo.New()

	req := httptest.NewRequest(http.MethodPost, "/inventory", strings.NewReader(`{"name":"Pipette tips","quantity":200,"reorder_level":50}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.CreateItem(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created Item
	json.Unmarshal(rec.Body.Bytes(), &created)
	if !strings.HasPrefix(created.ID, "ITM-") {
		t.Errorf("expected generated id, got %q", created.ID)
	}

	req = httptest.NewRequest(http.MethodGet, "/inventory", nil)
	rec = httptest.NewRecorder()
	if err := h.ListItems(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Pipette tips") {
		t.Errorf("expected item in list, got %s", rec.Body.String())
	}
}

func TestHandler_UpdateItem_UsesPathID(t *testing.T) {
	svc, _ := newTestService()
	h, e := NewHandler(svc), echo.New()
	item := &Item{Name: "Slides", Quantity: 100, ReorderLevel: 20}
	if err := svc.Create(context.Background(), item); err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"id":"ITM-OTHER","name":"Slides","quantity":15,"reorder_level":20}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(item.ID)
	if err := h.UpdateItem(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.Get(context.Background(), item.ID)
	if got.Quantity != 15 {
		t.Errorf("expected quantity 15, got %d", got.Quantity)
	}
}

func TestHandler_DeleteItem_NotFound(t *testing.T) {
	svc, _ := newTestService()
	h, e := NewHandler(svc), echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("ITM-NONE")
	he, ok := h.DeleteItem(c).(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", he)
	}
}
