package domain

import "testing"

func TestRunStatus_Terminal(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   bool
	}{
		{RunQueued, false},
		{RunRunning, false},
		{RunSucceeded, true},
		{RunFailed, true},
		{RunCancelled, true},
		{"Completed", true},
		{"Success", true},
		{"Finished", true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%q.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRunStatus_Success(t *testing.T) {
	for _, status := range []RunStatus{RunSucceeded, "Completed", "Success", "Finished"} {
		if !status.Success() {
			t.Errorf("%q.Success() = false, want true", status)
		}
	}
	for _, status := range []RunStatus{RunQueued, RunRunning, RunFailed, RunCancelled} {
		if status.Success() {
			t.Errorf("%q.Success() = true, want false", status)
		}
	}
}

func TestRunStatus_Failure(t *testing.T) {
	for _, status := range []RunStatus{RunFailed, RunCancelled} {
		if !status.Failure() {
			t.Errorf("%q.Failure() = false, want true", status)
		}
	}
	if RunSucceeded.Failure() {
		t.Error("Succeeded misclassified as failure")
	}
}
