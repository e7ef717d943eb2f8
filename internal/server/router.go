// Package server exposes the daemon's status HTTP surface: health and
// per-vertical pending sync counts.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/arjunkr9693/Len-Den-Khata-sub000/internal/ledger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingCustomerLedger  = errors.New("customer ledger dependency required")
	errMissingMonthBookLedger = errors.New("month book ledger dependency required")
)

// Dependencies wires the status API to the two vertical ledgers.
type Dependencies struct {
	CustomerLedger  *ledger.Ledger
	MonthBookLedger *ledger.Ledger
	Logger          *zap.Logger
}

// NewHTTPHandler builds the gin router for the status API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.CustomerLedger == nil {
		return nil, errMissingCustomerLedger
	}
	if deps.MonthBookLedger == nil {
		return nil, errMissingMonthBookLedger
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		customerLedger:  deps.CustomerLedger,
		monthBookLedger: deps.MonthBookLedger,
		logger:          logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/sync/status", handler.handleSyncStatus)

	return router, nil
}

type httpHandler struct {
	customerLedger  *ledger.Ledger
	monthBookLedger *ledger.Ledger
	logger          *zap.Logger
}

type verticalStatusPayload struct {
	PendingUpload int64 `json:"pending_upload"`
	PendingUpdate int64 `json:"pending_update"`
	PendingDelete int64 `json:"pending_delete"`
	Uploaded      int64 `json:"uploaded"`
}

type syncStatusPayload struct {
	Customer  verticalStatusPayload `json:"customer"`
	MonthBook verticalStatusPayload `json:"month_book"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleSyncStatus(c *gin.Context) {
	customer, err := h.customerLedger.CountByState(c.Request.Context())
	if err != nil {
		h.logger.Error("customer status query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status_query_failed"})
		return
	}
	monthBook, err := h.monthBookLedger.CountByState(c.Request.Context())
	if err != nil {
		h.logger.Error("month book status query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status_query_failed"})
		return
	}

	c.JSON(http.StatusOK, syncStatusPayload{
		Customer:  toPayload(customer),
		MonthBook: toPayload(monthBook),
	})
}

func toPayload(counts map[ledger.State]int64) verticalStatusPayload {
	return verticalStatusPayload{
		PendingUpload: counts[ledger.StatePendingUpload],
		PendingUpdate: counts[ledger.StatePendingUpdate],
		PendingDelete: counts[ledger.StatePendingDelete],
		Uploaded:      counts[ledger.StateUploaded],
	}
}
