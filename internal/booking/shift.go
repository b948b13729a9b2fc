package booking

// Shift is the wire form of a shift, both when booking and when listing.
type Shift struct {
	CompanyID string `json:"companyId"`
	UserID    string `json:"userId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Action    string `json:"action"`
}

// SameSlot reports whether two shifts share company, user, start and end.
// Action is not part of a shift's identity.
func (s Shift) SameSlot(other Shift) bool {
	return s.CompanyID == other.CompanyID &&
		s.UserID == other.UserID &&
		s.StartTime == other.StartTime &&
		s.EndTime == other.EndTime
}

// ShiftExists reports whether candidate matches any entry of existing.
func ShiftExists(candidate Shift, existing []Shift) bool {
	for _, s := range existing {
		if candidate.SameSlot(s) {
			return true
		}
	}
	return false
}
