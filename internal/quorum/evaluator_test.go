package quorum

import "testing"

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		required   int
		total      int
		approvals  int
		rejections int
		want       ApprovalStatus
	}{
		{"no votes yet", 2, 3, 0, 0, StatusPending},
		{"one approval short of quorum", 2, 3, 1, 0, StatusPending},
		{"quorum reached", 2, 3, 2, 0, StatusApproved},
		{"quorum reached with a rejection", 2, 3, 2, 1, StatusApproved},
		{"one rejection still recoverable", 2, 3, 0, 1, StatusPending},
		{"two rejections make quorum unreachable", 2, 3, 0, 2, StatusRejected},
		{"one approval one rejection", 2, 3, 1, 1, StatusPending},
		{"unanimous 1-of-1", 1, 1, 1, 0, StatusApproved},
		{"single rejection kills 1-of-1", 1, 1, 0, 1, StatusRejected},
		{"3-of-5 pending at two approvals", 3, 5, 2, 1, StatusPending},
		{"3-of-5 approved", 3, 5, 3, 2, StatusApproved},
		{"3-of-5 unreachable after three rejections", 3, 5, 2, 3, StatusRejected},
		{"unanimous quorum single rejection", 3, 3, 2, 1, StatusRejected},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.required, tc.total, tc.approvals, tc.rejections)
			if got != tc.want {
				t.Errorf("Evaluate(%d, %d, %d, %d) = %s, want %s",
					tc.required, tc.total, tc.approvals, tc.rejections, got, tc.want)
			}
		})
	}
}

func TestEvaluateApprovalPriority(t *testing.T) {
	// When approvals reach quorum in the same state where remaining voters
	// could no longer matter, approval wins.
	if got := Evaluate(1, 2, 1, 1); got != StatusApproved {
		t.Errorf("Evaluate(1, 2, 1, 1) = %s, want %s", got, StatusApproved)
	}
}

func TestValidateQuorum(t *testing.T) {
	tests := []struct {
		name     string
		required int
		total    int
		wantErr  bool
	}{
		{"valid 2-of-3", 2, 3, false},
		{"valid 1-of-1", 1, 1, false},
		{"zero required", 0, 3, true},
		{"negative required", -1, 3, true},
		{"required exceeds total", 4, 3, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateQuorum(tc.required, tc.total)
			if tc.wantErr && err == nil {
				t.Errorf("ValidateQuorum(%d, %d) = nil, want error", tc.required, tc.total)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateQuorum(%d, %d) = %v, want nil", tc.required, tc.total, err)
			}
		})
	}
}
