package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aselim/homecare-contracts/internal/http/middleware"
	"github.com/aselim/homecare-contracts/internal/model"
	"github.com/aselim/homecare-contracts/internal/repository"
	"github.com/aselim/homecare-contracts/internal/service"
)

type HistoryExporter interface {
	Generate(ledger model.CustomerLedger) ([]byte, error)
}

type ContractSheetGenerator interface {
	Generate(contract model.Contract, predecessor *model.Contract) ([]byte, error)
}

type Handler struct {
	replacements *service.ReplacementService
	signatures   *service.SignatureService
	queries      *service.QueryService
	excel        HistoryExporter
	pdf          ContractSheetGenerator
	log          zerolog.Logger
}

func NewHandler(
	replacements *service.ReplacementService,
	signatures *service.SignatureService,
	queries *service.QueryService,
	excel HistoryExporter,
	pdf ContractSheetGenerator,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		replacements: replacements,
		signatures:   signatures,
		queries:      queries,
		excel:        excel,
		pdf:          pdf,
		log:          log,
	}
}

type workerRequest struct {
	WorkerID     string  `json:"worker_id" binding:"required"`
	WorkerName   string  `json:"worker_name" binding:"required"`
	WorkerPhone  string  `json:"worker_phone" binding:"required"`
	WorkerSalary float64 `json:"worker_salary" binding:"required"`
}

type replaceWorkerRequest struct {
	Worker             workerRequest `json:"worker" binding:"required"`
	ChangeDate         string        `json:"change_date"`
	AcknowledgeExpired bool          `json:"acknowledge_expired"`
}

type createContractRequest struct {
	CustomerID    string        `json:"customer_id" binding:"required"`
	CustomerName  string        `json:"customer_name" binding:"required"`
	CustomerPhone string        `json:"customer_phone" binding:"required"`
	Worker        workerRequest `json:"worker" binding:"required"`
	StartDate     string        `json:"start_date" binding:"required"`
	EndDate       string        `json:"end_date" binding:"required"`
}

type signatureWebhookRequest struct {
	ContractID string `json:"contract_id" binding:"required"`
	EventType  string `json:"event_type" binding:"required"`
}

type completeElapsedRequest struct {
	AsOf string `json:"as_of"`
}

func (h *Handler) replaceWorker(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	originalID, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	var req replaceWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	worker, err := parseWorker(req.Worker)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var changeDate time.Time
	if req.ChangeDate != "" {
		changeDate, err = parseDate(req.ChangeDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid change_date"})
			return
		}
	}

	result, err := h.replacements.ReplaceWorker(c.Request.Context(), service.ReplaceWorkerInput{
		OriginalContractID: originalID,
		Worker:             worker,
		ChangeDate:         changeDate,
		AcknowledgeExpired: req.AcknowledgeExpired,
		Principal:          principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"contract": contractResponse(result.Contract),
		"expired":  result.Expired,
	})
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customerID, err := uuid.Parse(strings.TrimSpace(req.CustomerID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer_id"})
		return
	}
	worker, err := parseWorker(req.Worker)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
		return
	}

	contract, err := h.replacements.CreateContract(c.Request.Context(), service.CreateContractInput{
		CustomerID:    customerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Worker:        worker,
		StartDate:     start,
		EndDate:       end,
		Principal:     principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"contract": contractResponse(contract)})
}

func (h *Handler) signatureWebhook(c *gin.Context) {
	var req signatureWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contractID, err := uuid.Parse(strings.TrimSpace(req.ContractID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract_id"})
		return
	}

	outcome, err := h.signatures.ApplySignatureEvent(c.Request.Context(), service.SignatureEvent{
		ContractID: contractID,
		Type:       service.SignatureEventType(strings.ToLower(strings.TrimSpace(req.EventType))),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applied": outcome.Applied,
		"status":  outcome.Status,
	})
}

func (h *Handler) currentContract(c *gin.Context) {
	contract, err := h.queries.CurrentContract(c.Request.Context(), c.Param("phone"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract": contractResponse(contract)})
}

func (h *Handler) history(c *gin.Context) {
	ledger, err := h.queries.History(c.Request.Context(), c.Param("phone"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledgerResponse(ledger))
}

func (h *Handler) exportHistory(c *gin.Context) {
	ledger, err := h.queries.History(c.Request.Context(), c.Param("phone"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	content, err := h.excel.Generate(*ledger)
	if err != nil {
		h.handleError(c, err)
		return
	}

	fileName := "history-" + sanitizeFileName(ledger.CustomerPhone) + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}

func (h *Handler) allCurrentContracts(c *gin.Context) {
	var filter repository.CurrentFilter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := model.ContractStatus(strings.ToLower(raw))
		filter.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("ending_before")); raw != "" {
		endingBefore, err := parseDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ending_before"})
			return
		}
		filter.EndingBefore = &endingBefore
	}

	contracts, err := h.queries.AllCurrentContracts(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	items := make([]gin.H, 0, len(contracts))
	for i := range contracts {
		items = append(items, contractResponse(&contracts[i]))
	}
	c.JSON(http.StatusOK, gin.H{"contracts": items, "total": len(items)})
}

func (h *Handler) contractPDF(c *gin.Context) {
	contractID, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	contract, err := h.queries.Contract(c.Request.Context(), contractID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	var predecessor *model.Contract
	if contract.ReplacesContractID != nil {
		predecessor, err = h.queries.Contract(c.Request.Context(), *contract.ReplacesContractID)
		if err != nil && !errors.Is(err, service.ErrNotFound) {
			h.handleError(c, err)
			return
		}
	}

	content, err := h.pdf.Generate(*contract, predecessor)
	if err != nil {
		h.handleError(c, err)
		return
	}

	fileName := "contract-" + sanitizeFileName(contract.ContractNumber) + ".pdf"
	c.Header("Content-Disposition", "attachment; filename=\""+fileName+"\"")
	c.Data(http.StatusOK, "application/pdf", content)
}

func (h *Handler) completeElapsed(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req completeElapsedRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var asOf time.Time
	if req.AsOf != "" {
		parsed, err := parseDate(req.AsOf)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid as_of"})
			return
		}
		asOf = parsed
	}

	completed, err := h.replacements.CompleteElapsed(c.Request.Context(), asOf, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": completed})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidContinuity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrExpiredContract):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "warning": "expired_replacement"})
	case errors.Is(err, service.ErrNotLatest),
		errors.Is(err, service.ErrReplacementInProgress),
		errors.Is(err, service.ErrContractExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func contractResponse(contract *model.Contract) gin.H {
	resp := gin.H{
		"id":              contract.ID,
		"contract_number": contract.ContractNumber,
		"customer_id":     contract.CustomerID,
		"customer_name":   contract.CustomerName,
		"customer_phone":  contract.CustomerPhone,
		"worker_id":       contract.WorkerID,
		"worker_name":     contract.WorkerName,
		"worker_phone":    contract.WorkerPhone,
		"worker_salary":   contract.WorkerSalary,
		"start_date":      formatDate(contract.StartDate),
		"end_date":        formatDate(contract.EndDate),
		"status":          contract.ContractStatus,
		"is_latest":       contract.IsLatest,
		"created_at":      contract.CreatedAt,
		"updated_at":      contract.UpdatedAt,
	}
	if contract.ReplacesContractID != nil {
		resp["replaces_contract_id"] = *contract.ReplacesContractID
	}
	if contract.ReplacedByContractID != nil {
		resp["replaced_by_contract_id"] = *contract.ReplacedByContractID
	}
	if contract.ServiceDays != nil {
		resp["service_days"] = *contract.ServiceDays
	}
	if contract.TerminationReason != nil {
		resp["termination_reason"] = *contract.TerminationReason
	}
	return resp
}

func ledgerResponse(ledger *model.CustomerLedger) gin.H {
	entries := make([]gin.H, 0, len(ledger.Entries))
	for _, entry := range ledger.Entries {
		item := gin.H{
			"contract_id":     entry.ContractID,
			"contract_number": entry.ContractNumber,
			"worker_name":     entry.WorkerName,
			"worker_phone":    entry.WorkerPhone,
			"worker_salary":   entry.WorkerSalary,
			"start_date":      formatDate(entry.StartDate),
			"end_date":        formatDate(entry.EndDate),
			"status":          entry.Status,
			"position":        entry.Position,
		}
		if entry.ServiceDays != nil {
			item["service_days"] = *entry.ServiceDays
		}
		if entry.TerminationReason != nil {
			item["termination_reason"] = *entry.TerminationReason
		}
		entries = append(entries, item)
	}

	resp := gin.H{
		"customer_phone": ledger.CustomerPhone,
		"customer_name":  ledger.CustomerName,
		"total_workers":  ledger.TotalWorkers,
		"contracts":      entries,
	}
	if ledger.LatestContractID != nil {
		resp["latest_contract_id"] = *ledger.LatestContractID
	}
	return resp
}

func parseWorker(req workerRequest) (model.NewWorker, error) {
	workerID, err := uuid.Parse(strings.TrimSpace(req.WorkerID))
	if err != nil {
		return model.NewWorker{}, errors.New("invalid worker_id")
	}
	return model.NewWorker{
		WorkerID:     workerID,
		WorkerName:   strings.TrimSpace(req.WorkerName),
		WorkerPhone:  strings.TrimSpace(req.WorkerPhone),
		WorkerSalary: req.WorkerSalary,
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		"2006-01-02",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_', r == '+':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
