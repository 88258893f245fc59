package validation

import (
	"errors"
	"strings"
	"testing"
)

type inner struct {
	Level string `json:"level" validate:"oneof=debug info"`
}

type item struct {
	ID string `json:"id" validate:"required"`
}

type sample struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count,omitempty" validate:"gte=1"`
	Hook  string `json:"hook" validate:"omitempty,url"`
	Inner inner  `json:"inner"`
	Items []item `json:"items" validate:"dive"`
}

func valid() sample {
	return sample{Name: "a", Count: 1, Inner: inner{Level: "info"}, Items: []item{{ID: "x"}}}
}

func TestStructValid(t *testing.T) {
	if err := Struct(valid()); err != nil {
		t.Errorf("Struct: %v", err)
	}
}

func TestStructFieldErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*sample)
		field   string
		tag     string
		message string
	}{
		{"required", func(s *sample) { s.Name = "" }, "name", "required", "name is required"},
		{"gte", func(s *sample) { s.Count = 0 }, "count", "gte", "count must be greater than or equal to 1"},
		{"url", func(s *sample) { s.Hook = "nope" }, "hook", "url", "hook must be a valid URL"},
		{"nested oneof", func(s *sample) { s.Inner.Level = "loud" }, "inner.level", "oneof", "inner.level must be one of: debug info"},
		{"dive", func(s *sample) { s.Items = append(s.Items, item{}) }, "items[1].id", "required", "items[1].id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := Struct(s)
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if len(verr.Fields) != 1 {
				t.Fatalf("fields = %+v, want one", verr.Fields)
			}
			f := verr.Fields[0]
			if f.Field != tt.field || f.Tag != tt.tag || f.Message != tt.message {
				t.Errorf("field error = %+v", f)
			}
		})
	}
}

func TestErrorJoinsMessages(t *testing.T) {
	s := valid()
	s.Name = ""
	s.Count = 0
	err := Struct(s)
	if err == nil {
		t.Fatal("Struct succeeded")
	}
	if msg := err.Error(); !strings.Contains(msg, "name is required") || !strings.Contains(msg, "; ") {
		t.Errorf("Error() = %q", msg)
	}
	if (&Error{}).Error() != "validation failed" {
		t.Error("empty Error has wrong message")
	}
}

func TestStructNonStruct(t *testing.T) {
	var verr *Error
	if err := Struct(42); !errors.As(err, &verr) || verr.Fields[0].Field != "unknown" {
		t.Errorf("error = %v", err)
	}
}
