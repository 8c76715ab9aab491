package proto

import (
	"encoding/json"
	"testing"
)

func TestIDDecodesStringsAndNumbers(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{`{"id":"m1"}`, "m1"},
		{`{"id":42}`, "42"},
		{`{"id":null}`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		var v struct {
			ID ID `json:"id"`
		}
		if err := json.Unmarshal([]byte(tt.in), &v); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if v.ID != tt.want {
			t.Errorf("%s: got %q, want %q", tt.in, v.ID, tt.want)
		}
	}

	var bad struct {
		ID ID `json:"id"`
	}
	if err := json.Unmarshal([]byte(`{"id":true}`), &bad); err == nil {
		t.Fatal("expected error for boolean id")
	}
}

func TestIDEncodesAsString(t *testing.T) {
	raw, err := json.Marshal(Channel{ID: Int64ID(7), Name: "general"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"id":"7","name":"general","removable":false}` {
		t.Fatalf("unexpected json: %s", raw)
	}

	n, err := ID("7").Int64()
	if err != nil || n != 7 {
		t.Fatalf("Int64: %d %v", n, err)
	}
}

func TestNewPush(t *testing.T) {
	push, err := NewPush(EventRemoveChannel, RemoveChannelData{ID: "3"})
	if err != nil {
		t.Fatalf("new push: %v", err)
	}
	raw, _ := json.Marshal(push)
	if string(raw) != `{"event":"removeChannel","data":{"id":"3"}}` {
		t.Fatalf("unexpected envelope: %s", raw)
	}
}
