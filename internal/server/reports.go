package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	assignmentdomain "github.com/sitelane/materialflow/internal/assignment/domain"
	"github.com/sitelane/materialflow/internal/providers/pdf"
	usagedomain "github.com/sitelane/materialflow/internal/usage/domain"
)

// UsageSummaryPDF renders one work order's consumption rollup for the site
// office. Figures are re-derived from the ledger at render time.
func (s *Server) UsageSummaryPDF(c *gin.Context) {
	ctx := c.Request.Context()

	workOrder, err := s.workOrderSvc.GetByID(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	assignments, err := s.assignmentSvc.ListByWorkOrder(ctx, workOrder.ID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := pdf.UsageSummaryData{
		WorkOrderNumber: workOrder.Number,
		WorkOrderTitle:  workOrder.Title,
		ClientName:      workOrder.ClientName,
		GeneratedAt:     time.Now().UTC().Format("2006-01-02 15:04"),
	}

	for _, assignment := range assignments {
		material, err := s.materialSvc.GetByID(ctx, assignment.MaterialID.String())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		progress, err := s.usageSvc.Progress(ctx, assignment.ID.String())
		if err != nil {
			AbortWithError(c, err)
			return
		}

		data.Lines = append(data.Lines, pdf.UsageSummaryLine{
			MaterialCode:   material.Code,
			Description:    material.Description,
			Unit:           assignment.Unit,
			Total:          progress.TotalQuantity.String(),
			Used:           progress.CumulativeUsed.String(),
			Remaining:      progress.Remaining.String(),
			UsedPercentage: strconv.Itoa(progress.UsedPercentage) + "%",
			Status:         string(assignment.Status()),
		})
	}

	reader, err := s.pdfProvider.GenerateUsageSummary(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.DataFromReader(http.StatusOK, -1, "application/pdf", reader, map[string]string{
		"Content-Disposition": `attachment; filename="usage-summary-` + workOrder.Number + `.pdf"`,
	})
}

// IssueNotePDF prints the handoff slip for a purchasable assignment that
// has been issued to the site.
func (s *Server) IssueNotePDF(c *gin.Context) {
	ctx := c.Request.Context()

	assignment, err := s.assignmentSvc.GetByID(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, ok := assignment.Detail.(assignmentdomain.PurchasableDetail)
	if !ok {
		AbortWithError(c, assignmentdomain.ErrTypeMismatch)
		return
	}

	records, err := s.usageSvc.ListRecords(ctx, assignment.ID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var siteIssue *usagedomain.UsageRecord
	for i := range records {
		if records[i].RecordType == usagedomain.RecordTypeSiteIssue {
			siteIssue = &records[i]
			break
		}
	}
	if siteIssue == nil {
		AbortWithError(c, usagedomain.ErrSiteIssueRequired)
		return
	}

	material, err := s.materialSvc.GetByID(ctx, assignment.MaterialID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	workOrder, err := s.workOrderSvc.GetByID(ctx, assignment.WorkOrderID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	warehouseName := "direct to site"
	if detail.WarehouseID != nil {
		warehouse, err := s.warehouseSvc.GetByID(ctx, detail.WarehouseID.String())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		warehouseName = warehouse.Name
	}

	reader, err := s.pdfProvider.GenerateIssueNote(ctx, pdf.IssueNoteData{
		WorkOrderNumber: workOrder.Number,
		MaterialCode:    material.Code,
		Description:     material.Description,
		Quantity:        detail.Quantity.String(),
		Unit:            assignment.Unit,
		ReleasedBy:      siteIssue.ReleasedBy,
		ReceivedBySite:  siteIssue.ReceivedBySite,
		IssueDate:       siteIssue.RecordDate.Format("2006-01-02"),
		Warehouse:       warehouseName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.DataFromReader(http.StatusOK, -1, "application/pdf", reader, map[string]string{
		"Content-Disposition": `attachment; filename="issue-note-` + assignment.ID.String() + `.pdf"`,
	})
}
