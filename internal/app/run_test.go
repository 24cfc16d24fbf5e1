package app

import "testing"

func TestNewRunRecord(t *testing.T) {
	run := NewRunRecord("Ingest", "/backups/mychannel_77")

	if run.Operation != "Ingest" {
		t.Errorf("Operation = %q, want %q", run.Operation, "Ingest")
	}
	if run.Parameters != "/backups/mychannel_77" {
		t.Errorf("Parameters = %q, want %q", run.Parameters, "/backups/mychannel_77")
	}
	if run.Status != "success" {
		t.Errorf("Status = %q, want %q", run.Status, "success")
	}
	if run.ID != 0 {
		t.Errorf("ID = %d, want 0", run.ID)
	}
}

func TestRunRecord_Persisted(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		want bool
	}{
		{name: "not persisted when ID is 0", id: 0, want: false},
		{name: "persisted when ID is positive", id: 1, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &RunRecord{ID: tt.id}
			if got := run.Persisted(); got != tt.want {
				t.Errorf("Persisted() = %v, want %v", got, tt.want)
			}
		})
	}
}
