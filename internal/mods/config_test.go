package mods

import (
	"errors"
	"testing"
)

func TestParseConfigServerShape(t *testing.T) {
	data := []byte(`{"game":{"name":"srv","mods":[
		{"modId":"59674C21AA886D57","name":"RHS - Status Quo","version":"0.10.0"},
		{"modId":"5965550f24a0c152","name":"Where Am I","version":"1.2.0"}
	]}}`)
	got, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d mods want 2", len(got))
	}
	if got[1].Key() != "5965550F24A0C152" {
		t.Fatalf("got key %q", got[1].Key())
	}
	if got[0].Version != "0.10.0" {
		t.Fatalf("got version %q want %q", got[0].Version, "0.10.0")
	}
}

func TestParseConfigBareShape(t *testing.T) {
	got, err := ParseConfig([]byte(`{"mods":[{"modId":"ABCDEF01","name":"A","version":"1.0"}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].Name != "A" {
		t.Fatalf("unexpected mods: %+v", got)
	}
}

func TestParseConfigRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"invalid json", `{"mods":`, ""},
		{"no array", `{"game":{}}`, ""},
		{"empty", `{"mods":[]}`, ""},
		{"missing id", `{"mods":[{"name":"A","version":"1.0"}]}`, "mods[0].modId"},
		{"non hex id", `{"mods":[{"modId":"ABC","name":"A"},{"modId":"not-hex!","name":"B"}]}`, "mods[1].modId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.input))
			if !errors.Is(err, ErrMalformedInput) {
				t.Fatalf("got %v want ErrMalformedInput", err)
			}
			if tt.field == "" {
				return
			}
			var ie *InputError
			if !errors.As(err, &ie) {
				t.Fatalf("expected *InputError, got %T", err)
			}
			if _, ok := ie.Fields[tt.field]; !ok {
				t.Fatalf("missing field %q in %v", tt.field, ie.Fields)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare", "5965550f24a0c152", "5965550F24A0C152", false},
		{"url", "https://reforger.armaplatform.com/workshop/59674C21AA886D57-RHS-StatusQuo", "59674C21AA886D57", false},
		{"changelog url", "https://reforger.armaplatform.com/workshop/59674C21AA886D57/changelog", "59674C21AA886D57", false},
		{"short", "ABC", "", true},
		{"no id", "https://reforger.armaplatform.com/workshop", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}
