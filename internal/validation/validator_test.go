package validation

import (
	"errors"
	"testing"
	"time"
)

type sample struct {
	Title       string   `json:"title" validate:"required,notblank,max=255"`
	Type        string   `json:"type" validate:"required,oneof=movie tv_show"`
	ReleaseYear *int     `json:"releaseYear" validate:"required,releaseyear"`
	Rating      *float64 `json:"rating" validate:"required,gte=0,lte=10"`
	Duration    *int     `json:"duration" validate:"required,gte=1"`
	Budget      *float64 `json:"budget" validate:"omitempty,gte=0"`
	Email       string   `json:"email,omitempty" validate:"omitempty,email"`
}

func intPtr(n int) *int             { return &n }
func floatPtr(f float64) *float64   { return &f }
func fixedClock() func() time.Time { return func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) } }

func valid() sample {
	return sample{Title: "Dune", Type: "movie", ReleaseYear: intPtr(2021), Rating: floatPtr(8.5), Duration: intPtr(155)}
}

func fields(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve Errors
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want Errors", err)
	}
	out := map[string]string{}
	for _, fe := range ve {
		out[fe.Field] = fe.Message
	}
	return out
}

func TestValidate(t *testing.T) {
	v := New(fixedClock())

	t.Run("valid payload", func(t *testing.T) {
		if err := v.Validate(valid()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("zero rating is present", func(t *testing.T) {
		s := valid()
		s.Rating = floatPtr(0)
		if err := v.Validate(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("boundaries", func(t *testing.T) {
		cases := []struct {
			name  string
			mut   func(*sample)
			field string
		}{
			{"blank title", func(s *sample) { s.Title = "   " }, "title"},
			{"bad type", func(s *sample) { s.Type = "documentary" }, "type"},
			{"year 1899", func(s *sample) { s.ReleaseYear = intPtr(1899) }, "releaseYear"},
			{"year too far ahead", func(s *sample) { s.ReleaseYear = intPtr(2031) }, "releaseYear"},
			{"rating below zero", func(s *sample) { s.Rating = floatPtr(-0.1) }, "rating"},
			{"rating above ten", func(s *sample) { s.Rating = floatPtr(10.1) }, "rating"},
			{"duration zero", func(s *sample) { s.Duration = intPtr(0) }, "duration"},
			{"negative budget", func(s *sample) { s.Budget = floatPtr(-1) }, "budget"},
			{"missing year", func(s *sample) { s.ReleaseYear = nil }, "releaseYear"},
			{"bad email", func(s *sample) { s.Email = "nope" }, "email"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				s := valid()
				tc.mut(&s)
				got := fields(t, v.Validate(s))
				if _, ok := got[tc.field]; !ok || len(got) != 1 {
					t.Errorf("violations = %v, want only %s", got, tc.field)
				}
			})
		}
	})

	t.Run("accepted edges", func(t *testing.T) {
		s := valid()
		s.ReleaseYear = intPtr(2030)
		s.Rating = floatPtr(10)
		s.Duration = intPtr(1)
		s.Budget = floatPtr(0)
		if err := v.Validate(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.ReleaseYear = intPtr(1900)
		if err := v.Validate(s); err != nil {
			t.Fatalf("1900 rejected: %v", err)
		}
	})

	t.Run("lists every violation", func(t *testing.T) {
		got := fields(t, v.Validate(sample{}))
		for _, f := range []string{"title", "type", "releaseYear", "rating", "duration"} {
			if _, ok := got[f]; !ok {
				t.Errorf("missing violation for %s in %v", f, got)
			}
		}
	})

	t.Run("messages", func(t *testing.T) {
		s := valid()
		s.ReleaseYear = intPtr(1800)
		s.Type = "x"
		got := fields(t, v.Validate(s))
		if got["releaseYear"] != "releaseYear must be between 1900 and 2030" {
			t.Errorf("releaseYear message = %q", got["releaseYear"])
		}
		if got["type"] != "type must be one of: movie, tv_show" {
			t.Errorf("type message = %q", got["type"])
		}
	})
}
