package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
	"bitbucket.org/mmdatafocus/clientdesk_backend/models"
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
)

// Assigns reference numbers to projects and milestones that are missing one,
// oldest first so assignment order follows creation order. Safe to re-run;
// already-assigned rows are left untouched.
func main() {
	projectId := flag.Int("project-id", 0, "Optional: backfill only one project and its milestones. 0 backfills everything.")
	dryRun := flag.Bool("dry-run", false, "List rows that would be assigned without writing.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	// Redis is optional here; without it the sequence falls back to the
	// process mutex plus the uniqueness re-check.
	config.ConnectRedisWithRetry()

	ctx = utils.SetUserNameInContext(ctx, "ReferenceBackfill")
	// Bulk assignment should not churn the cache on every row.
	ctx = utils.SetSkipInvalidationInContext(ctx, true)

	var projects []models.Project
	projectQuery := db.WithContext(ctx).
		Where("reference_number = '' OR reference_number IS NULL").
		Order("created_at")
	if *projectId > 0 {
		projectQuery = db.WithContext(ctx).Where("id = ?", *projectId)
	}
	if err := projectQuery.Find(&projects).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list projects: %v\n", err)
		os.Exit(1)
	}

	assigned := 0
	for _, project := range projects {
		if project.ReferenceNumber != "" {
			continue
		}
		if *dryRun {
			fmt.Printf("project %d (%s): would assign reference\n", project.ID, project.Name)
			continue
		}
		updated, err := models.AssignProjectReference(ctx, project.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "project %d: %v\n", project.ID, err)
			continue
		}
		fmt.Printf("project %d (%s): assigned %s\n", updated.ID, updated.Name, updated.ReferenceNumber)
		assigned++
	}

	var milestones []models.Milestone
	milestoneQuery := db.WithContext(ctx).
		Where("reference_number = '' OR reference_number IS NULL").
		Order("created_at")
	if *projectId > 0 {
		milestoneQuery = milestoneQuery.Where("project_id = ?", *projectId)
	}
	if err := milestoneQuery.Find(&milestones).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list milestones: %v\n", err)
		os.Exit(1)
	}

	for _, milestone := range milestones {
		if *dryRun {
			fmt.Printf("milestone %d (%s): would assign reference\n", milestone.ID, milestone.Name)
			continue
		}
		updated, err := models.AssignMilestoneReference(ctx, milestone.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "milestone %d: %v\n", milestone.ID, err)
			continue
		}
		if updated.ReferenceNumber == "" {
			// parent project has no reference yet; a later run picks it up
			fmt.Printf("milestone %d (%s): skipped, parent project has no reference\n", updated.ID, updated.Name)
			continue
		}
		fmt.Printf("milestone %d (%s): assigned %s\n", updated.ID, updated.Name, updated.ReferenceNumber)
		assigned++
	}

	fmt.Printf("done: %d references assigned\n", assigned)
}
