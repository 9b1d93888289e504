package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	usagedomain "github.com/sitelane/materialflow/internal/usage/domain"
)

// lockAssignment takes the cross-instance ledger lock for one assignment
// so two crews posting against the same assignment serialize. Redis trouble
// fails open; contention aborts with a conflict.
func (s *Server) lockAssignment(c *gin.Context, assignmentID string) (func(), bool) {
	token, acquired, err := s.writeLimiter.TryLockAssignment(c.Request.Context(), assignmentID)
	if err != nil {
		return func() {}, true
	}
	if !acquired {
		AbortWithError(c, ErrConflict)
		return nil, false
	}
	return func() {
		_ = s.writeLimiter.ReleaseAssignment(c.Request.Context(), assignmentID, token)
	}, true
}

func (s *Server) ListUsageRecords(c *gin.Context) {
	resp, err := s.usageSvc.ListRecords(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type recordUsageRequest struct {
	QuantityUsed decimal.Decimal `json:"quantity_used"`
	Notes        string          `json:"notes"`
	PhotoIDs     []string        `json:"photo_ids"`
}

func (s *Server) RecordUsage(c *gin.Context) {
	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	assignmentID := strings.TrimSpace(c.Param("id"))
	release, ok := s.lockAssignment(c, assignmentID)
	if !ok {
		return
	}
	defer release()

	record, progress, err := s.usageSvc.RecordUsage(c.Request.Context(), usagedomain.RecordUsageRequest{
		AssignmentID: assignmentID,
		QuantityUsed: req.QuantityUsed,
		Notes:        strings.TrimSpace(req.Notes),
		PhotoIDs:     req.PhotoIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"record":   record,
		"progress": progress,
	}})
}

type recordSiteIssueRequest struct {
	ReleasedBy     string   `json:"released_by"`
	ReceivedBySite string   `json:"received_by_site"`
	PhotoIDs       []string `json:"photo_ids"`
}

func (s *Server) RecordSiteIssue(c *gin.Context) {
	var req recordSiteIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	assignmentID := strings.TrimSpace(c.Param("id"))
	release, ok := s.lockAssignment(c, assignmentID)
	if !ok {
		return
	}
	defer release()

	record, err := s.usageSvc.RecordSiteIssue(c.Request.Context(), usagedomain.RecordSiteIssueRequest{
		AssignmentID:   assignmentID,
		ReleasedBy:     strings.TrimSpace(req.ReleasedBy),
		ReceivedBySite: strings.TrimSpace(req.ReceivedBySite),
		PhotoIDs:       req.PhotoIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

type recordDispositionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

func (s *Server) RecordDisposition(c *gin.Context) {
	var req recordDispositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	assignmentID := strings.TrimSpace(c.Param("id"))
	release, ok := s.lockAssignment(c, assignmentID)
	if !ok {
		return
	}
	defer release()

	record, progress, err := s.usageSvc.RecordReturnOrWaste(c.Request.Context(), usagedomain.DispositionRequest{
		AssignmentID: assignmentID,
		Action:       usagedomain.DispositionAction(strings.TrimSpace(req.Action)),
		Reason:       strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"record":   record,
		"progress": progress,
	}})
}
