package models

type EntityType string

const (
	EntityTypeOrganization    EntityType = "Organization"
	EntityTypeProject         EntityType = "Project"
	EntityTypeMilestone       EntityType = "Milestone"
	EntityTypeInvoice         EntityType = "Invoice"
	EntityTypeInvoiceLineItem EntityType = "InvoiceLineItem"
	EntityTypeTimeEntry       EntityType = "TimeEntry"
	EntityTypeServiceRequest  EntityType = "ServiceRequest"
	EntityTypeMonthlyReport   EntityType = "MonthlyReport"
)

// AllEntityTypes enumerates every tracked entity type; the cache dependency
// validation walks it so a newly added type cannot be missed.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityTypeOrganization,
		EntityTypeProject,
		EntityTypeMilestone,
		EntityTypeInvoice,
		EntityTypeInvoiceLineItem,
		EntityTypeTimeEntry,
		EntityTypeServiceRequest,
		EntityTypeMonthlyReport,
	}
}

type ProjectStatus string

const (
	ProjectStatusActive          ProjectStatus = "Active"
	ProjectStatusWaitingOnClient ProjectStatus = "WaitingOnClient"
	ProjectStatusOnHold          ProjectStatus = "OnHold"
	ProjectStatusCompleted       ProjectStatus = "Completed"
	ProjectStatusCancelled       ProjectStatus = "Cancelled"
)

func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusWaitingOnClient, ProjectStatusOnHold,
		ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

type MilestoneWorkStatus string

const (
	MilestoneWorkStatusPlanned          MilestoneWorkStatus = "Planned"
	MilestoneWorkStatusInProgress       MilestoneWorkStatus = "InProgress"
	MilestoneWorkStatusOnHold           MilestoneWorkStatus = "OnHold"
	MilestoneWorkStatusWaitingForClient MilestoneWorkStatus = "WaitingForClient"
	MilestoneWorkStatusCompleted        MilestoneWorkStatus = "Completed"
)

func (s MilestoneWorkStatus) IsValid() bool {
	switch s {
	case MilestoneWorkStatusPlanned, MilestoneWorkStatusInProgress, MilestoneWorkStatusOnHold,
		MilestoneWorkStatusWaitingForClient, MilestoneWorkStatusCompleted:
		return true
	}
	return false
}

// MilestonePaymentStatus is derived, never stored. See Milestone.PaymentStatus.
type MilestonePaymentStatus string

const (
	MilestonePaymentStatusPending  MilestonePaymentStatus = "Pending"
	MilestonePaymentStatusInvoiced MilestonePaymentStatus = "Invoiced"
	MilestonePaymentStatusPaid     MilestonePaymentStatus = "Paid"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "Draft"
	InvoiceStatusPending  InvoiceStatus = "Pending"
	InvoiceStatusPartial  InvoiceStatus = "Partial"
	InvoiceStatusPaid     InvoiceStatus = "Paid"
	InvoiceStatusOverdue  InvoiceStatus = "Overdue"
	InvoiceStatusVoid     InvoiceStatus = "Void"
	InvoiceStatusCredited InvoiceStatus = "Credited"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusPartial,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoid, InvoiceStatusCredited:
		return true
	}
	return false
}

// isTerminal reports statuses that can never become Overdue.
func (s InvoiceStatus) isTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusVoid || s == InvoiceStatusCredited
}

type LineItemType string

const (
	LineItemTypeFixed    LineItemType = "Fixed"
	LineItemTypeSupport  LineItemType = "Support"
	LineItemTypeExpense  LineItemType = "Expense"
	LineItemTypeDiscount LineItemType = "Discount"
)

func (t LineItemType) IsValid() bool {
	switch t {
	case LineItemTypeFixed, LineItemTypeSupport, LineItemTypeExpense, LineItemTypeDiscount:
		return true
	}
	return false
}

type ServiceRequestStatus string

const (
	ServiceRequestStatusOpen       ServiceRequestStatus = "Open"
	ServiceRequestStatusInProgress ServiceRequestStatus = "InProgress"
	ServiceRequestStatusResolved   ServiceRequestStatus = "Resolved"
	ServiceRequestStatusClosed     ServiceRequestStatus = "Closed"
)

func (s ServiceRequestStatus) IsValid() bool {
	switch s {
	case ServiceRequestStatusOpen, ServiceRequestStatusInProgress,
		ServiceRequestStatusResolved, ServiceRequestStatusClosed:
		return true
	}
	return false
}
