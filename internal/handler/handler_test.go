package handler

import (
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/labstack/echo/v4"
)

func newCtx(method, target, body string) echo.Context {
    return newCtxType(method, target, body, echo.MIMEApplicationJSON)
}

func newCtxType(method, target, body, contentType string) echo.Context {
    req := httptest.NewRequest(method, target, strings.NewReader(body))
    if contentType != "" {
        req.Header.Set(echo.HeaderContentType, contentType)
    }
    return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestParseID(t *testing.T) {
    cases := map[string]bool{"1": true, "42": true, "0": false, "-3": false, "abc": false, "": false, "2.5": false}
    for raw, want := range cases {
        c := newCtx(http.MethodGet, "/", "")
        c.SetParamNames("id")
        c.SetParamValues(raw)
        if _, ok := parseID(c); ok != want {
            t.Errorf("parseID(%q) ok = %v, want %v", raw, ok, want)
        }
    }
}

func TestQueryInt(t *testing.T) {
    cases := []struct {
        query string
        want  int
    }{
        {"", 20},
        {"page=3", 3},
        {"page=0", 20},
        {"page=-1", 20},
        {"page=x", 20},
    }
    for _, tc := range cases {
        c := newCtx(http.MethodGet, "/?"+tc.query, "")
        if got := queryInt(c, "page", 20); got != tc.want {
            t.Errorf("queryInt(%q) = %d, want %d", tc.query, got, tc.want)
        }
    }
}
func TestDecodeJSONIgnoresContentType(t *testing.T) {
    for _, ct := range []string{"", echo.MIMETextPlain, echo.MIMEApplicationForm} {
        var p struct {
            Title string `json:"title"`
        }
        if err := decodeJSON(newCtxType(http.MethodPost, "/", `{"title":"Dune"}`, ct), &p); err != nil || p.Title != "Dune" {
            t.Errorf("content type %q: title %q, err %v", ct, p.Title, err)
        }
    }

    var p struct{ Title string }
    if err := decodeJSON(newCtx(http.MethodPost, "/", ""), &p); err != nil {
        t.Errorf("empty body: %v", err)
    }
}

func TestBindError(t *testing.T) {
    type payload struct {
        Year *int `json:"releaseYear"`
    }

    t.Run("type mismatch names field", func(t *testing.T) {
        var p payload
        err := decodeJSON(newCtx(http.MethodPost, "/", `{"releaseYear":"soon"}`), &p)
        if err == nil {
            t.Fatal("expected bind error")
        }
        ve := bindError(err)
        if len(ve) != 1 || ve[0].Field != "releaseYear" {
            t.Fatalf("got %+v", ve)
        }
        if !strings.Contains(ve[0].Message, "integer") {
            t.Errorf("message = %q", ve[0].Message)
        }
    })

    t.Run("syntax error blames body", func(t *testing.T) {
        var p payload
        err := decodeJSON(newCtx(http.MethodPost, "/", `{"releaseYear":`), &p)
        if err == nil {
            t.Fatal("expected bind error")
        }
        if ve := bindError(err); len(ve) != 1 || ve[0].Field != "body" {
            t.Errorf("got %+v", ve)
        }
    })
}

func TestNewEntryHandlerDefaults(t *testing.T) {
    h := NewEntryHandler(nil, nil, nil, 0, 5)
    if h.PageSize != 20 || h.MaxPageSize != 20 || h.Events == nil {
        t.Errorf("got %+v", h)
    }
}
