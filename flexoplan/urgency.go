package flexoplan

// Urgency buckets an order by how close (or past) its delivery window is.
type Urgency int

const (
	UrgencyCriticalOverdue Urgency = iota // more than 30 days late
	UrgencyOverdue                        // late, up to 30 days
	UrgencyUrgent                         // due within 3 days
	UrgencyUpcoming                       // due within a week
	UrgencyNormal
)

func (u Urgency) String() string {
	switch u {
	case UrgencyCriticalOverdue:
		return "critical-overdue"
	case UrgencyOverdue:
		return "overdue"
	case UrgencyUrgent:
		return "urgent"
	case UrgencyUpcoming:
		return "upcoming"
	default:
		return "normal"
	}
}

// ClassifyUrgency buckets by days remaining until delivery. Orders that
// never reported a delivery window count as normal.
func ClassifyUrgency(daysRemaining *int) Urgency {
	days := 999
	if daysRemaining != nil {
		days = *daysRemaining
	}
	switch {
	case days < -30:
		return UrgencyCriticalOverdue
	case days < 0:
		return UrgencyOverdue
	case days <= 3:
		return UrgencyUrgent
	case days <= 7:
		return UrgencyUpcoming
	default:
		return UrgencyNormal
	}
}
