package models

import "testing"

func TestValidateCacheDependencies(t *testing.T) {
	if err := ValidateCacheDependencies(); err != nil {
		t.Fatalf("dependency table invalid: %v", err)
	}
}

func TestEveryEntityTypeHasDependencyEntry(t *testing.T) {
	for _, entityType := range AllEntityTypes() {
		if _, ok := cacheDependencies[entityType]; !ok {
			t.Fatalf("entity type %s missing from dependency table", entityType)
		}
	}
}

// A write to a time entry can stale every hours rollup plus the report
// summaries; an invoice write touches only the invoice lists. These edges
// are relied on by the cached readers, so pin them.
func TestDependencyEdges(t *testing.T) {
	cases := []struct {
		entityType EntityType
		expected   []CacheNamespace
	}{
		{EntityTypeTimeEntry, []CacheNamespace{
			NamespaceServiceRequestHours,
			NamespaceProjectHours,
			NamespaceMilestoneHours,
			NamespaceReportSummary,
		}},
		{EntityTypeInvoice, []CacheNamespace{
			NamespaceInvoiceList,
			NamespacePendingInvoices,
		}},
		{EntityTypeMilestone, []CacheNamespace{
			NamespaceProjectRollup,
		}},
		{EntityTypeProject, []CacheNamespace{
			NamespaceActiveProjects,
		}},
	}
	for _, tc := range cases {
		edges := cacheDependencies[tc.entityType]
		if len(edges) != len(tc.expected) {
			t.Fatalf("%s: expected %d edges, got %d", tc.entityType, len(tc.expected), len(edges))
		}
		for i, namespace := range tc.expected {
			if edges[i] != namespace {
				t.Fatalf("%s edge %d: expected %s, got %s", tc.entityType, i, namespace, edges[i])
			}
		}
	}
}
