package task

// Priority represents the urgency of a task.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ValidPriorities returns all valid priority values in ascending severity.
func ValidPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// IsValidPriority returns true if the priority is a valid priority value.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Severity returns 1 (low) through 4 (critical). Unknown values rank as medium.
func (p Priority) Severity() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 2
	}
}

// RecurringType selects the interval rule of a recurring task.
type RecurringType string

const (
	RecurDaily     RecurringType = "daily"
	RecurWeekly    RecurringType = "weekly"
	RecurMonthly   RecurringType = "monthly"
	RecurQuarterly RecurringType = "quarterly"
	RecurYearly    RecurringType = "yearly"
	// RecurCustom follows a cron expression instead of a fixed interval.
	RecurCustom RecurringType = "custom"
)

// ValidRecurringTypes returns all valid recurrence types.
func ValidRecurringTypes() []RecurringType {
	return []RecurringType{RecurDaily, RecurWeekly, RecurMonthly, RecurQuarterly, RecurYearly, RecurCustom}
}

// IsValidRecurringType returns true if the type is a valid recurrence type.
func IsValidRecurringType(r RecurringType) bool {
	switch r {
	case RecurDaily, RecurWeekly, RecurMonthly, RecurQuarterly, RecurYearly, RecurCustom:
		return true
	default:
		return false
	}
}
