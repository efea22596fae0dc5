package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"asistencia/internal/backend"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		query string
		want  QueryKind
	}{
		{"12345678", KindID},
		{"0000", KindID},
		{"Juan Pérez", KindName},
		{"V-12345678", KindName},
		{"123abc", KindName},
	}
	for _, tc := range cases {
		if got := Classify(tc.query); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

func TestResolve_DigitQueryFiltersByCedula(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"data":[{"_id":"p1","cedula":"12345"}]}`))
	}))
	defer ts.Close()

	r := New(backend.New(ts.URL), 100)
	persons, kind, err := r.Resolve(context.Background(), "12345")
	if err != nil {
		t.Fatal(err)
	}
	if kind != KindID {
		t.Errorf("kind = %v", kind)
	}
	if len(persons) != 1 {
		t.Fatalf("persons = %+v", persons)
	}
	if gotQuery != "cedula=12345&limit=100" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestResolve_NameQueryFiltersByFullName(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	r := New(backend.New(ts.URL), 100)
	persons, kind, err := r.Resolve(context.Background(), "  Jane Doe ")
	if err != nil {
		t.Fatal(err)
	}
	if kind != KindName {
		t.Errorf("kind = %v", kind)
	}
	if len(persons) != 0 {
		t.Errorf("persons = %+v", persons)
	}
	if gotQuery != "limit=100&nombreCompleto=Jane+Doe" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestResolve_BlankQueryIssuesNoRequest(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	r := New(backend.New(ts.URL), 100)
	for _, q := range []string{"", "   ", "\t"} {
		if _, _, err := r.Resolve(context.Background(), q); err != ErrEmptyQuery {
			t.Errorf("Resolve(%q) err = %v, want ErrEmptyQuery", q, err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("blank queries issued %d requests", calls.Load())
	}
}

func TestPrefill(t *testing.T) {
	if got := Prefill("0000"); got["cedula"] != "0000" || len(got) != 1 {
		t.Errorf("Prefill(0000) = %v", got)
	}
	if got := Prefill("Jane Doe"); got["nombre"] != "Jane Doe" || len(got) != 1 {
		t.Errorf("Prefill(Jane Doe) = %v", got)
	}
	if got := Prefill("  "); got != nil {
		t.Errorf("Prefill(blank) = %v", got)
	}
}
