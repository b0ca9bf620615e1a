package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	projectReferencePrefix = "PR-"
	invoiceNumberPrefix    = "INV-"

	projectReferenceCounterKey = "project_reference_seq"
	invoiceNumberCounterKey    = "invoice_number_seq"
)

var sequenceMutex sync.Mutex

// nextSequence hands out the next numeric suffix for a prefixed reference
// column. Scan-max-then-increment alone races under concurrent creation, so
// the critical section is a process mutex plus a best-effort redis lock, the
// running value lives in a redis counter seeded from the db max, and the
// candidate is re-checked against the db before it is handed out.
func nextSequence(tx *gorm.DB, model interface{}, column string, prefix string, counterKey string) (int64, error) {
	ctx := tx.Statement.Context

	sequenceMutex.Lock()
	defer sequenceMutex.Unlock()
	unlock, err := utils.SequenceLock(ctx, counterKey, "referenceNumber.go", "nextSequence")
	if err != nil {
		return 0, err
	}
	defer unlock()

	var seqNo int64
	for {
		seqNo, err = config.GetRedisCounter(ctx, counterKey)
		if err != nil {
			return 0, err
		}
		// fresh counter (or no redis): seed from the db max
		if seqNo <= 1 {
			var dbSeq *int64
			sel := fmt.Sprintf("MAX(CAST(SUBSTRING(%s, %d) AS UNSIGNED))", column, len(prefix)+1)
			if err := tx.Model(model).Select(sel).
				Where(column+" LIKE ?", prefix+"%").
				Scan(&dbSeq).Error; err != nil {
				return 0, utils.WrapDBError(err)
			}
			// in case db has no records yet
			if dbSeq == nil {
				seqNo = 0
			} else {
				seqNo = *dbSeq
			}
			seqNo++
			if err := config.SetRedisObject(counterKey, &seqNo, 0); err != nil {
				return 0, err
			}
		}
		// check the candidate is not taken before handing it out
		var count int64
		if err := tx.Model(model).
			Where(column+" = ?", fmt.Sprintf("%s%04d", prefix, seqNo)).
			Count(&count).Error; err != nil {
			return 0, utils.WrapDBError(err)
		}
		if count == 0 {
			break
		}
	}
	return seqNo, nil
}

func formatProjectReference(seqNo int64) string {
	return fmt.Sprintf("%s%04d", projectReferencePrefix, seqNo)
}

// assignProjectReference persists the next project reference exactly once.
// No-op when the project already carries one. UpdateColumn on purpose: the
// derived-field persist must not re-enter the model hooks.
func assignProjectReference(tx *gorm.DB, project *Project) error {
	if project.ReferenceNumber != "" {
		return nil
	}
	seqNo, err := nextSequence(tx, &Project{}, "reference_number", projectReferencePrefix, projectReferenceCounterKey)
	if err != nil {
		return err
	}
	reference := formatProjectReference(seqNo)
	if err := tx.Model(project).UpdateColumn("reference_number", reference).Error; err != nil {
		return utils.WrapDBError(err)
	}
	project.ReferenceNumber = reference
	return nil
}

// AssignProjectReference assigns a reference to an existing project, if it
// does not have one yet. Idempotent.
func AssignProjectReference(ctx context.Context, projectId int) (*Project, error) {
	project, err := utils.FetchModel[Project](ctx, projectId)
	if err != nil {
		return nil, err
	}
	if project.ReferenceNumber != "" {
		return project, nil
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	if err := assignProjectReference(tx.WithContext(ctx), project); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	// UpdateColumn skips the hooks, so the cache upkeep they normally do
	// has to happen here or readers keep the pre-assignment snapshot.
	_ = utils.RemoveRedisItem[Project](project.ID)
	if skip, ok := utils.GetSkipInvalidationFromContext(ctx); !ok || !skip {
		invalidateEntity(ctx, EntityTypeProject)
	}
	return project, nil
}

// formatMilestoneOrder renders a milestone order for the reference suffix:
// integer part zero-padded to 2 digits, non-zero fraction appended with the
// leading zero stripped. 1 -> "01", 1.5 -> "01.5", 10 -> "10".
func formatMilestoneOrder(order decimal.Decimal) string {
	intPart := order.IntPart()
	formatted := fmt.Sprintf("%02d", intPart)
	frac := order.Sub(decimal.NewFromInt(intPart))
	if !frac.IsZero() {
		formatted += strings.TrimPrefix(frac.String(), "0")
	}
	return formatted
}

// GenerateMilestoneReference builds a milestone reference as a strict
// extension of its project's reference.
func GenerateMilestoneReference(projectReference string, order decimal.Decimal) (string, error) {
	if projectReference == "" {
		return "", errors.New("project has no reference number yet")
	}
	if order.LessThanOrEqual(decimal.Zero) {
		return "", errors.New("milestone order is not set")
	}
	return projectReference + "-" + formatMilestoneOrder(order), nil
}

// assignMilestoneReference persists the milestone reference exactly once.
// A milestone reference can only be assigned after its project's: when the
// parent has no reference yet (or order is unset) the assignment is logged
// and skipped, leaving the milestone unset for a later retry.
func assignMilestoneReference(tx *gorm.DB, milestone *Milestone) error {
	if milestone.ReferenceNumber != "" {
		return nil
	}

	var projectReference string
	if err := tx.Model(&Project{}).
		Where("id = ?", milestone.ProjectId).
		Select("reference_number").
		Scan(&projectReference).Error; err != nil {
		return utils.WrapDBError(err)
	}

	reference, err := GenerateMilestoneReference(projectReference, milestone.Order)
	if err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "referenceNumber.go", "assignMilestoneReference", "skipping reference assignment", milestone.ID, err)
		return nil
	}

	if err := tx.Model(milestone).UpdateColumn("reference_number", reference).Error; err != nil {
		return utils.WrapDBError(err)
	}
	milestone.ReferenceNumber = reference
	return nil
}

// AssignMilestoneReference assigns a reference to an existing milestone, if
// it does not have one yet. Idempotent.
func AssignMilestoneReference(ctx context.Context, milestoneId int) (*Milestone, error) {
	milestone, err := utils.FetchModel[Milestone](ctx, milestoneId)
	if err != nil {
		return nil, err
	}
	if milestone.ReferenceNumber != "" {
		return milestone, nil
	}

	db := config.GetDB()
	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	if err := assignMilestoneReference(tx.WithContext(ctx), milestone); err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	_ = utils.RemoveRedisItem[Milestone](milestone.ID)
	if skip, ok := utils.GetSkipInvalidationFromContext(ctx); !ok || !skip {
		invalidateEntity(ctx, EntityTypeMilestone)
	}
	return milestone, nil
}

// nextInvoiceNumber hands out the next immutable invoice number.
func nextInvoiceNumber(tx *gorm.DB) (string, error) {
	seqNo, err := nextSequence(tx, &Invoice{}, "invoice_number", invoiceNumberPrefix, invoiceNumberCounterKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", invoiceNumberPrefix, seqNo), nil
}
