package result

import "testing"

func TestNew(t *testing.T) {
	meta := map[string]any{"operation_type": "venta", "price": 1000.0}

	r := New("17", 0.032, "casa", meta)

	if r.ID() != "17" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Score() != 0.032 {
		t.Errorf("Score() = %f", r.Score())
	}
	if r.Content() != "casa" {
		t.Errorf("Content() = %q", r.Content())
	}
	if r.Metadata()["price"] != 1000.0 {
		t.Errorf("Metadata() = %v", r.Metadata())
	}
}
