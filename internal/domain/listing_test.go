package domain

import (
	"errors"
	"math"
	"testing"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"450", 450, true},
		{" 12.5 ", 12.5, true},
		{"-3", -3, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseNumber(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNumberOr(t *testing.T) {
	if got := NumberOr("", 1); got != 1 {
		t.Errorf("NumberOr empty = %v, want fallback 1", got)
	}
	if got := NumberOr("junk", 1); got != 1 {
		t.Errorf("NumberOr junk = %v, want fallback 1", got)
	}
	if got := NumberOr("3", 1); got != 3 {
		t.Errorf("NumberOr 3 = %v", got)
	}
}

func TestParseFlag(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "on", "On", "yes", " yes "} {
		if !ParseFlag(s) {
			t.Errorf("ParseFlag(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "false", "0", "off", "no", "maybe"} {
		if ParseFlag(s) {
			t.Errorf("ParseFlag(%q) = true, want false", s)
		}
	}
}

func TestCreateListingRequest_Normalize(t *testing.T) {
	r := CreateListingRequest{
		Title:       "  ",
		Description: " desc ",
		Address:     " addr ",
		City:        " KTM ",
	}
	r.Normalize()
	if r.Title != DefaultTitle {
		t.Errorf("blank title should fall back to %q, got %q", DefaultTitle, r.Title)
	}
	if r.Description != "desc" || r.Address != "addr" || r.City != "KTM" {
		t.Errorf("fields not trimmed: %+v", r)
	}
}

func TestCreateListingRequest_Validate(t *testing.T) {
	valid := CreateListingRequest{
		Description: "d", Address: "a", City: "c", Price: 100,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*CreateListingRequest)
	}{
		{"no description", func(r *CreateListingRequest) { r.Description = "" }},
		{"no address", func(r *CreateListingRequest) { r.Address = "" }},
		{"no city", func(r *CreateListingRequest) { r.City = "" }},
		{"zero price", func(r *CreateListingRequest) { r.Price = 0 }},
		{"negative price", func(r *CreateListingRequest) { r.Price = -1 }},
		{"NaN price", func(r *CreateListingRequest) { r.Price = math.NaN() }},
		{"Inf price", func(r *CreateListingRequest) { r.Price = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUpdateListingRequest_Validate(t *testing.T) {
	var r UpdateListingRequest
	if err := r.Validate(); err != nil {
		t.Fatalf("empty update rejected: %v", err)
	}

	bad := -1.0
	r.Price = &bad
	if !errors.Is(r.Validate(), ErrInvalidInput) {
		t.Error("negative price accepted")
	}

	good := 500.0
	r.Price = &good
	if err := r.Validate(); err != nil {
		t.Errorf("valid price rejected: %v", err)
	}
}

func TestListQuery_Normalize(t *testing.T) {
	var q ListQuery
	q.Normalize()
	if q.Status != StatusActive {
		t.Errorf("default status = %q, want active", q.Status)
	}
	if q.Limit != DefaultListLimit {
		t.Errorf("default limit = %d, want %d", q.Limit, DefaultListLimit)
	}

	q = ListQuery{Limit: 1000, Status: StatusUnavailable, City: " Pokhara "}
	q.Normalize()
	if q.Limit != MaxListLimit {
		t.Errorf("limit not capped: %d", q.Limit)
	}
	if q.Status != StatusUnavailable {
		t.Errorf("explicit status overridden: %q", q.Status)
	}
	if q.City != "Pokhara" {
		t.Errorf("city not trimmed: %q", q.City)
	}
}

func TestIsValidStatus(t *testing.T) {
	if !IsValidStatus(StatusActive) || !IsValidStatus(StatusUnavailable) {
		t.Error("known statuses rejected")
	}
	for _, s := range []string{"", "archived", "ACTIVE", "deleted"} {
		if IsValidStatus(s) {
			t.Errorf("IsValidStatus(%q) = true", s)
		}
	}
}
