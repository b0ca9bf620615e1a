package models

import (
	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
)

func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Organization{},
		&Project{},
		&Milestone{},
		&Invoice{},
		&InvoiceLineItem{},
		&TimeEntry{},
		&ServiceRequest{},
		&MonthlyReport{},
		&History{},
	)
}
