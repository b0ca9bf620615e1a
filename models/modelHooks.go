package models

import (
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
	"gorm.io/gorm"
)

// afterWrite routes a write into the cache invalidation table. When the
// caller armed an eviction buffer the flush is recorded there and runs
// after commit; flushing here, mid-transaction, would let a racing reader
// re-cache the pre-commit value. Maintenance tools set the skip flag on
// their context to run without cache churn; history is written either way.
func afterWrite(tx *gorm.DB, entityType EntityType) {
	ctx := tx.Statement.Context
	if skip, ok := utils.GetSkipInvalidationFromContext(ctx); ok && skip {
		return
	}
	if buffer := bufferFrom(ctx); buffer != nil {
		buffer.addEntity(entityType)
		return
	}
	invalidateEntity(ctx, entityType)
}

// evictInstance drops the per-entity redis key, deferred to post-commit
// when a buffer is armed.
func evictInstance[T any](tx *gorm.DB, id int) {
	if buffer := bufferFrom(tx.Statement.Context); buffer != nil {
		buffer.addKey(utils.InstanceCacheKey[T](id))
		return
	}
	_ = utils.RemoveRedisItem[T](id)
}

/* Organization */

func (o *Organization) AfterCreate(tx *gorm.DB) error {
	afterWrite(tx, EntityTypeOrganization)
	return SaveHistoryCreate(tx, o.ID, o, "organization created")
}

func (o *Organization) AfterUpdate(tx *gorm.DB) error {
	evictInstance[Organization](tx, o.ID)
	afterWrite(tx, EntityTypeOrganization)
	return SaveHistoryUpdate(tx, o.ID, o, "organization updated")
}

func (o *Organization) AfterDelete(tx *gorm.DB) error {
	evictInstance[Organization](tx, o.ID)
	afterWrite(tx, EntityTypeOrganization)
	return SaveHistoryDelete(tx, o.ID, o, "organization deleted")
}

/* Project */

func (p *Project) AfterCreate(tx *gorm.DB) error {
	afterWrite(tx, EntityTypeProject)
	return SaveHistoryCreate(tx, p.ID, p, "project created")
}

func (p *Project) AfterUpdate(tx *gorm.DB) error {
	evictInstance[Project](tx, p.ID)
	afterWrite(tx, EntityTypeProject)
	return SaveHistoryUpdate(tx, p.ID, p, "project updated")
}

func (p *Project) AfterDelete(tx *gorm.DB) error {
	evictInstance[Project](tx, p.ID)
	afterWrite(tx, EntityTypeProject)
	return SaveHistoryDelete(tx, p.ID, p, "project deleted")
}

/* Milestone */

func (m *Milestone) AfterCreate(tx *gorm.DB) error {
	afterWrite(tx, EntityTypeMilestone)
	return SaveHistoryCreate(tx, m.ID, m, "milestone created")
}

func (m *Milestone) AfterUpdate(tx *gorm.DB) error {
	evictInstance[Milestone](tx, m.ID)
	afterWrite(tx, EntityTypeMilestone)
	return SaveHistoryUpdate(tx, m.ID, m, "milestone updated")
}

func (m *Milestone) AfterDelete(tx *gorm.DB) error {
	evictInstance[Milestone](tx, m.ID)
	afterWrite(tx, EntityTypeMilestone)
	return SaveHistoryDelete(tx, m.ID, m, "milestone deleted")
}

/* Invoice */

func (iv *Invoice) AfterCreate(tx *gorm.DB) error {
	afterWrite(tx, EntityTypeInvoice)
	return SaveHistoryCreate(tx, iv.ID, iv, "invoice created")
}

func (iv *Invoice) AfterUpdate(tx *gorm.DB) error {
	evictInstance[Invoice](tx, iv.ID)
	afterWrite(tx, EntityTypeInvoice)
	return SaveHistoryUpdate(tx, iv.ID, iv, "invoice updated")
}

func (iv *Invoice) AfterDelete(tx *gorm.DB) error {
	evictInstance[Invoice](tx, iv.ID)
	afterWrite(tx, EntityTypeInvoice)
	return SaveHistoryDelete(tx, iv.ID, iv, "invoice deleted")
}

/* InvoiceLineItem */

func (item *InvoiceLineItem) AfterCreate(tx *gorm.DB) error {
	afterWrite(tx, EntityTypeInvoiceLineItem)
	return nil
}

func (item *InvoiceLineItem) AfterUpdate(tx *gorm.DB) error {
	afterWrite(tx, EntityTypeInvoiceLineItem)
	return nil
}

func (item *InvoiceLineItem) AfterDelete(tx *gorm.DB) error {
	afterWrite(tx, EntityTypeInvoiceLineItem)
	return nil
}

/* TimeEntry */

func (entry *TimeEntry) AfterCreate(tx *gorm.DB) error {
	afterWrite(tx, EntityTypeTimeEntry)
	return SaveHistoryCreate(tx, entry.ID, entry, "time entry created")
}

func (entry *TimeEntry) AfterUpdate(tx *gorm.DB) error {
	evictInstance[TimeEntry](tx, entry.ID)
	afterWrite(tx, EntityTypeTimeEntry)
	return SaveHistoryUpdate(tx, entry.ID, entry, "time entry updated")
}

func (entry *TimeEntry) AfterDelete(tx *gorm.DB) error {
	evictInstance[TimeEntry](tx, entry.ID)
	afterWrite(tx, EntityTypeTimeEntry)
	return SaveHistoryDelete(tx, entry.ID, entry, "time entry deleted")
}

/* ServiceRequest */

func (sr *ServiceRequest) AfterCreate(tx *gorm.DB) error {
	afterWrite(tx, EntityTypeServiceRequest)
	return SaveHistoryCreate(tx, sr.ID, sr, "service request created")
}

func (sr *ServiceRequest) AfterUpdate(tx *gorm.DB) error {
	evictInstance[ServiceRequest](tx, sr.ID)
	afterWrite(tx, EntityTypeServiceRequest)
	return SaveHistoryUpdate(tx, sr.ID, sr, "service request updated")
}

func (sr *ServiceRequest) AfterDelete(tx *gorm.DB) error {
	evictInstance[ServiceRequest](tx, sr.ID)
	afterWrite(tx, EntityTypeServiceRequest)
	return SaveHistoryDelete(tx, sr.ID, sr, "service request deleted")
}

/* MonthlyReport */

func (report *MonthlyReport) AfterCreate(tx *gorm.DB) error {
	afterWrite(tx, EntityTypeMonthlyReport)
	return SaveHistoryCreate(tx, report.ID, report, "monthly report created")
}

func (report *MonthlyReport) AfterUpdate(tx *gorm.DB) error {
	evictInstance[MonthlyReport](tx, report.ID)
	afterWrite(tx, EntityTypeMonthlyReport)
	return SaveHistoryUpdate(tx, report.ID, report, "monthly report updated")
}

func (report *MonthlyReport) AfterDelete(tx *gorm.DB) error {
	evictInstance[MonthlyReport](tx, report.ID)
	afterWrite(tx, EntityTypeMonthlyReport)
	return SaveHistoryDelete(tx, report.ID, report, "monthly report deleted")
}
