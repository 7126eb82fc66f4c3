package quorum

// Evaluate is the pure M-of-N decision function over a request's counters.
//
// Approved as soon as approvals reach the required count. Rejected as soon as
// quorum becomes mathematically unreachable: even if every still-undecided
// voter approved, the remaining pool (total - rejections) could not supply
// the required approvals. Approval is checked first and wins.
func Evaluate(required, total, approvals, rejections int) ApprovalStatus {
	if approvals >= required {
		return StatusApproved
	}
	if total-rejections < required {
		return StatusRejected
	}
	return StatusPending
}
