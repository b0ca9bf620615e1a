package models

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/clientdesk_backend/cache"
	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
)

// CacheNamespace is a key prefix owned by one kind of cached read. Every
// cached read builds its keys under exactly one namespace so that eviction
// can work on prefixes instead of enumerating keys.
type CacheNamespace string

const (
	NamespaceActiveProjects      CacheNamespace = "workbench_active_projects_"
	NamespaceProjectRollup       CacheNamespace = "project_rollup_"
	NamespaceProjectHours        CacheNamespace = "project_hours_"
	NamespaceMilestoneHours      CacheNamespace = "milestone_hours_"
	NamespaceServiceRequestHours CacheNamespace = "service_request_hours_"
	NamespaceReportSummary       CacheNamespace = "report_summary_"
	NamespaceInvoiceList         CacheNamespace = "invoice_list_"
	NamespacePendingInvoices     CacheNamespace = "pending_invoices_"
)

var allNamespaces = []CacheNamespace{
	NamespaceActiveProjects,
	NamespaceProjectRollup,
	NamespaceProjectHours,
	NamespaceMilestoneHours,
	NamespaceServiceRequestHours,
	NamespaceReportSummary,
	NamespaceInvoiceList,
	NamespacePendingInvoices,
}

// cacheDependencies says, per entity type, which cached namespaces a write
// to that entity can make stale. An entity missing an edge serves stale
// data; an entity with a spurious edge just evicts too much, so when in
// doubt an edge goes in. Milestone payment totals are computed fresh on
// every read and deliberately have no namespace, which keeps this table
// small enough to audit by hand.
var cacheDependencies = map[EntityType][]CacheNamespace{
	EntityTypeTimeEntry: {
		NamespaceServiceRequestHours,
		NamespaceProjectHours,
		NamespaceMilestoneHours,
		NamespaceReportSummary,
	},
	EntityTypeInvoice: {
		NamespaceInvoiceList,
		NamespacePendingInvoices,
	},
	EntityTypeInvoiceLineItem: {
		NamespaceInvoiceList,
		NamespacePendingInvoices,
	},
	EntityTypeMilestone: {
		NamespaceProjectRollup,
	},
	EntityTypeProject: {
		NamespaceActiveProjects,
	},
	EntityTypeOrganization:   {},
	EntityTypeServiceRequest: {},
	EntityTypeMonthlyReport:  {NamespaceReportSummary},
}

// ValidateCacheDependencies checks the dependency table at startup: every
// entity type must have an entry (even an empty one, so a new entity cannot
// be forgotten silently) and every referenced namespace must be declared.
func ValidateCacheDependencies() error {
	declared := make(map[CacheNamespace]bool, len(allNamespaces))
	for _, namespace := range allNamespaces {
		if namespace == "" {
			return fmt.Errorf("empty cache namespace declared")
		}
		if declared[namespace] {
			return fmt.Errorf("cache namespace %q declared twice", namespace)
		}
		declared[namespace] = true
	}
	for _, entityType := range AllEntityTypes() {
		edges, ok := cacheDependencies[entityType]
		if !ok {
			return fmt.Errorf("entity type %q has no cache dependency entry", entityType)
		}
		for _, namespace := range edges {
			if !declared[namespace] {
				return fmt.Errorf("entity type %q references undeclared namespace %q", entityType, namespace)
			}
		}
	}
	return nil
}

// invalidateEntity evicts every namespace a write to entityType can have
// made stale. Eviction is best effort: a failed flush is logged and the
// write still stands, the stale entries expire on their own.
func invalidateEntity(ctx context.Context, entityType EntityType) {
	store := cache.Std()
	for _, namespace := range cacheDependencies[entityType] {
		if _, err := store.FlushPattern(ctx, string(namespace)); err != nil {
			config.LogError(config.GetLogger(), "cacheKeys", "invalidateEntity",
				"flush namespace", string(namespace), err)
		}
	}
}
