package job

import (
	"strings"
	"testing"
)

var defaultKeys = Keys{Percentage: "percentage", Status: "status"}

func TestDecode_Percentage(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantReported bool
		wantValue    float64
		wantText     string
	}{
		{"integer", `{"percentage": 37}`, true, 37, "37"},
		{"fraction", `{"percentage": 37.5}`, true, 37.5, "37.5"},
		{"hundred", `{"percentage": 100}`, true, 100, "100"},
		{"zero is falsy", `{"percentage": 0}`, false, 0, ""},
		{"null is falsy", `{"percentage": null}`, false, 0, ""},
		{"false is falsy", `{"percentage": false}`, false, 0, ""},
		{"empty string is falsy", `{"percentage": ""}`, false, 0, ""},
		{"absent", `{"status": "queued"}`, false, 0, ""},
		{"numeric string kept verbatim", `{"percentage": "42.50"}`, true, 42.5, "42.50"},
		{"string zero is truthy", `{"percentage": "0"}`, true, 0, "0"},
		{"negative passes through", `{"percentage": -5}`, true, -5, "-5"},
		{"over 100 passes through", `{"percentage": 120}`, true, 120, "120"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.body), defaultKeys)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if p.Reported != tt.wantReported {
				t.Errorf("Reported = %v, want %v", p.Reported, tt.wantReported)
			}
			if p.Percentage != tt.wantValue {
				t.Errorf("Percentage = %v, want %v", p.Percentage, tt.wantValue)
			}
			if p.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", p.Text, tt.wantText)
			}
		})
	}
}

func TestDecode_Status(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantNil bool
	}{
		{"string", `{"status": "running"}`, "running", false},
		{"empty string", `{"status": ""}`, "", false},
		{"number", `{"status": 3}`, "3", false},
		{"bool", `{"status": true}`, "true", false},
		{"absent", `{"percentage": 10}`, "", true},
		{"null clears the label", `{"status": null}`, "", false},
		{"object", `{"status": {"a": 1}}`, "[object Object]", false},
		{"array", `{"status": ["copy", 2, null, [true]]}`, "copy,2,,true", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(tt.body), defaultKeys)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if tt.wantNil {
				if p.Status != nil {
					t.Errorf("Status = %q, want nil", *p.Status)
				}
				return
			}
			if p.Status == nil {
				t.Fatalf("Status = nil, want %q", tt.want)
			}
			if *p.Status != tt.want {
				t.Errorf("Status = %q, want %q", *p.Status, tt.want)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"invalid json", `{not json`, "invalid JSON"},
		{"array", `[1, 2]`, "JSON object"},
		{"scalar", `42`, "JSON object"},
		{"true percentage", `{"percentage": true}`, "numeric"},
		{"word percentage", `{"percentage": "half"}`, "numeric"},
		{"object percentage", `{"percentage": {"v": 1}}`, "numeric"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body), defaultKeys)
			if err == nil {
				t.Fatal("Decode() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Decode() error = %v, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDecode_CustomAndNestedKeys(t *testing.T) {
	keys := Keys{Percentage: "data.progress.pct", Status: "data.state"}
	body := `{"data": {"progress": {"pct": 64}, "state": "uploading"}}`

	p, err := Decode([]byte(body), keys)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !p.Reported || p.Percentage != 64 {
		t.Errorf("Percentage = %v (reported %v), want 64", p.Percentage, p.Reported)
	}
	if p.Status == nil || *p.Status != "uploading" {
		t.Errorf("Status = %v, want uploading", p.Status)
	}
}

func TestDecode_NestedPathThroughScalar(t *testing.T) {
	keys := Keys{Percentage: "data.pct", Status: "status"}

	p, err := Decode([]byte(`{"data": 5, "status": "x"}`), keys)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.Reported {
		t.Error("Reported = true, want false when path walks through a scalar")
	}
}
