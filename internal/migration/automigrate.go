package migration

import (
	alertdomain "github.com/sitelane/materialflow/internal/alert/domain"
	assignmentdomain "github.com/sitelane/materialflow/internal/assignment/domain"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/document"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	reallocationdomain "github.com/sitelane/materialflow/internal/reallocation/domain"
	stockadjustmentdomain "github.com/sitelane/materialflow/internal/stockadjustment/domain"
	usagedomain "github.com/sitelane/materialflow/internal/usage/domain"
	warehousedomain "github.com/sitelane/materialflow/internal/warehouse/domain"
	workorderdomain "github.com/sitelane/materialflow/internal/workorder/domain"
	"gorm.io/gorm"
)

// AutoMigrate builds the schema from the models. Non-postgres engines
// (sqlite dev runs, tests) use this path; postgres uses the versioned SQL.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&materialdomain.Material{},
		&warehousedomain.Warehouse{},
		&workorderdomain.WorkOrder{},
		&assignmentdomain.MaterialAssignment{},
		&assignmentdomain.PurchasableDetail{},
		&assignmentdomain.ReceivableDetail{},
		&inventorydomain.StockLevel{},
		&inventorydomain.WarehouseStock{},
		&usagedomain.UsageRecord{},
		&reallocationdomain.MaterialReallocation{},
		&reallocationdomain.ReallocationAudit{},
		&stockadjustmentdomain.StockAdjustment{},
		&alertdomain.StockAlert{},
		&auditdomain.AuditLog{},
		&document.Document{},
	)
}
