package domain

// TicketPriority is a ticket priority level of an organization.
// SLAHours mirrors the resolution hours of the priority's SLA policy.
type TicketPriority struct {
	ID             string `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	Color          string `json:"color" db:"color"`
	SLAHours       int    `json:"slaHours" db:"sla_hours"`
	OrganizationID string `json:"organizationId" db:"organization_id"`
}

// SLAPolicy holds the response and resolution targets for one ticket priority.
// At most one policy exists per (OrganizationID, TicketPriorityID).
type SLAPolicy struct {
	ID                 string `json:"id" db:"id"`
	OrganizationID     string `json:"organizationId" db:"organization_id"`
	TicketPriorityID   string `json:"ticketPriorityId" db:"ticket_priority_id"`
	FirstResponseHours int    `json:"firstResponseHours" db:"first_response_hours"`
	NextResponseHours  int    `json:"nextResponseHours" db:"next_response_hours"`
	ResolutionHours    int    `json:"resolutionHours" db:"resolution_hours"`
	BusinessHoursOnly  bool   `json:"businessHoursOnly" db:"business_hours_only"`
}

// Key returns the uniqueness key of the policy.
func (p SLAPolicy) Key() PolicyKey {
	return PolicyKey{OrganizationID: p.OrganizationID, TicketPriorityID: p.TicketPriorityID}
}

// Equal reports whether two policies hold the same values.
func (p SLAPolicy) Equal(o SLAPolicy) bool {
	return p == o
}

// PolicyKey identifies the single policy allowed per organization and priority.
type PolicyKey struct {
	OrganizationID   string
	TicketPriorityID string
}

// PolicyForm is the editable part of an SLA policy as submitted by an admin.
type PolicyForm struct {
	TicketPriorityID   string `json:"ticketPriorityId"`
	FirstResponseHours int    `json:"firstResponseHours"`
	NextResponseHours  int    `json:"nextResponseHours"`
	ResolutionHours    int    `json:"resolutionHours"`
	BusinessHoursOnly  bool   `json:"businessHoursOnly"`
}

// Policy builds the policy record the form describes for an organization.
func (f PolicyForm) Policy(id, organizationID string) SLAPolicy {
	return SLAPolicy{
		ID:                 id,
		OrganizationID:     organizationID,
		TicketPriorityID:   f.TicketPriorityID,
		FirstResponseHours: f.FirstResponseHours,
		NextResponseHours:  f.NextResponseHours,
		ResolutionHours:    f.ResolutionHours,
		BusinessHoursOnly:  f.BusinessHoursOnly,
	}
}

// SLAPolicyList is the denormalized copy of the policies kept in the settings store.
type SLAPolicyList struct {
	Policies []SLAPolicy `json:"policies"`
}

// DefaultTicketPriorities returns the priorities created for an organization
// that has none.
func DefaultTicketPriorities(organizationID string) []TicketPriority {
	return []TicketPriority{
		{Name: "Low", Color: "#6b7280", SLAHours: 72, OrganizationID: organizationID},
		{Name: "Medium", Color: "#3b82f6", SLAHours: 48, OrganizationID: organizationID},
		{Name: "High", Color: "#f59e0b", SLAHours: 24, OrganizationID: organizationID},
		{Name: "Urgent", Color: "#ef4444", SLAHours: 4, OrganizationID: organizationID},
	}
}
