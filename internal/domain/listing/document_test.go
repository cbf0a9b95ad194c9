package listing

import "testing"

func TestNewPrice(t *testing.T) {
	tests := []struct {
		raw     string
		numeric bool
		payload any
	}{
		{"", false, ""},
		{"120000", true, float64(120000)},
		{"99.5", true, 99.5},
		{"consultar", false, "consultar"},
	}
	for _, tc := range tests {
		p := NewPrice(tc.raw)
		if p.IsNumeric() != tc.numeric {
			t.Errorf("NewPrice(%q).IsNumeric() = %v", tc.raw, p.IsNumeric())
		}
		if p.PayloadValue() != tc.payload {
			t.Errorf("NewPrice(%q).PayloadValue() = %v, want %v", tc.raw, p.PayloadValue(), tc.payload)
		}
		if p.String() != tc.raw {
			t.Errorf("NewPrice(%q).String() = %q", tc.raw, p.String())
		}
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "content", Metadata{}); err == nil {
		t.Error("expected error for empty id")
	}
	if _, err := New("1", "", Metadata{}); err == nil {
		t.Error("expected error for empty content")
	}
	d, err := New("1", "text", Metadata{OperationType: "venta", Price: NewPrice("10")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID() != "1" || d.Content() != "text" || d.Metadata().OperationType != "venta" {
		t.Errorf("unexpected document: %+v", d)
	}
}

func TestMetadata_Payload(t *testing.T) {
	m := Metadata{
		Company:       "acme",
		PropertyID:    "42",
		OperationType: "alquiler",
		Price:         NewPrice("500"),
		Currency:      "USD",
	}
	p := m.Payload()
	if len(p) != 15 {
		t.Errorf("expected 15 payload keys, got %d", len(p))
	}
	if p[KeyPrice] != float64(500) {
		t.Errorf("expected numeric price, got %#v", p[KeyPrice])
	}
	if p[KeyBranchPhone] != "" {
		t.Errorf("expected empty branch phone, got %#v", p[KeyBranchPhone])
	}
}
