package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequest_ErrorCarriesStatusAndPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"ya existe","code":"DUPLICATE_KEY","errors":[{"field":"cedula","message":"La cédula ya está registrada."}]}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL).CreatePerson(context.Background(), CreatePersonInput{Nombre: "Ana"})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != http.StatusConflict {
		t.Errorf("status = %d", apiErr.Status)
	}
	if apiErr.Message != "ya existe" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if apiErr.Code() != "DUPLICATE_KEY" {
		t.Errorf("code = %q", apiErr.Code())
	}
	conflicts := apiErr.FieldConflicts()
	if len(conflicts) != 1 || conflicts[0].Field != "cedula" {
		t.Errorf("conflicts = %+v", conflicts)
	}
}

func TestRequest_ErrorWithoutBodyFallsBackToStatusText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL).Activities(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != http.StatusText(http.StatusBadGateway) {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestSearchPersons_FilterAndHeaders(t *testing.T) {
	var gotQuery, gotAccept, gotContentType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAccept = r.Header.Get("Accept")
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"data":[{"_id":"p1","cedula":"12345"}],"totalItems":1}`))
	}))
	defer ts.Close()

	page, err := New(ts.URL).SearchPersons(context.Background(), SearchFilter{Cedula: "12345", Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != "p1" {
		t.Fatalf("page = %+v", page)
	}
	if gotQuery != "cedula=12345&limit=100" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotAccept != "application/json" || gotContentType != "application/json" {
		t.Errorf("headers: accept=%q content-type=%q", gotAccept, gotContentType)
	}
}

func TestMarkAttendance_PathAndBody(t *testing.T) {
	var gotPath, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		_, _ = w.Write([]byte(`{"registered":true,"message":"Gracias"}`))
	}))
	defer ts.Close()

	outcome, err := New(ts.URL).MarkAttendance(context.Background(), "a1", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/actividades/a1/asistir" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody != `{"personaId":"p1"}` {
		t.Errorf("body = %q", gotBody)
	}
	if !outcome.NewlyMarked() || outcome.Message != "Gracias" {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestMarkAttendance_RequiresIDs(t *testing.T) {
	c := New("http://unused.invalid")
	if _, err := c.MarkAttendance(context.Background(), "", "p1"); err == nil {
		t.Error("expected error for missing activity id")
	}
	if _, err := c.MarkAttendance(context.Background(), "a1", ""); err == nil {
		t.Error("expected error for missing persona id")
	}
}

func TestRequest_EmptyBodyDecodesToNil(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	activities, err := New(ts.URL).Activities(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if activities != nil {
		t.Errorf("expected nil listing, got %+v", activities)
	}
}
