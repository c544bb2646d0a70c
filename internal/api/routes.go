package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/txrisk-engine/internal/config"
	"github.com/rawblock/txrisk-engine/internal/heuristics"
	"github.com/rawblock/txrisk-engine/pkg/models"
)

// HTTP surface of the scoring engine. The engine itself is a pure
// function of (history, profile, asOf); this layer owns the clock, the
// input validation, and the alert side channel. History snapshots
// arrive in the request body — the engine performs no chain I/O.

type APIHandler struct {
	engine *heuristics.Engine
	alerts *heuristics.AlertManager
	wsHub  *Hub
	cfg    *config.Config
	log    *logrus.Logger
}

func SetupRouter(engine *heuristics.Engine, alerts *heuristics.AlertManager, wsHub *Hub, cfg *config.Config, log *logrus.Logger) *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	handler := &APIHandler{engine: engine, alerts: alerts, wsHub: wsHub, cfg: cfg, log: log}
	limiter := NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitBurst)

	api := r.Group("/api/v1")
	api.Use(limiter.Middleware())
	{
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", wsHub.Subscribe)
		api.GET("/alerts/recent", handler.handleRecentAlerts)

		protected := api.Group("")
		protected.Use(AuthMiddleware(cfg.AuthToken, log))
		{
			protected.POST("/assess", handler.handleAssess)
			protected.POST("/anomalies", handler.handleDetectAnomalies)
			protected.POST("/transactions/analyze", handler.handleAnalyzeTransaction)
			protected.POST("/transactions/categorize", handler.handleCategorize)
		}
	}

	return r
}

// corsMiddleware mirrors the allowed-origin list onto responses. An
// empty list means any origin.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if len(allowedOrigins) == 0 {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range allowedOrigins {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type assessRequest struct {
	Profile      models.UserProfile         `json:"profile"`
	Transactions []models.TransactionRecord `json:"transactions"`
}

// handleAssess runs the full pipeline for one address.
// POST /api/v1/assess { "profile": {...}, "transactions": [...] }
func (h *APIHandler) handleAssess(c *gin.Context) {
	var req assessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Profile.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address", "address": req.Profile.Address})
		return
	}

	assessment, err := h.engine.AssessRisk(c.Request.Context(), req.Transactions, req.Profile, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Assessment failed", "details": err.Error()})
		return
	}

	h.alerts.EmitFromAssessment(*assessment)
	c.JSON(http.StatusOK, assessment)
}

type anomaliesRequest struct {
	Address      string                     `json:"address"`
	Transactions []models.TransactionRecord `json:"transactions"`
}

// handleDetectAnomalies runs the detector suite without the profile
// dimensions. POST /api/v1/anomalies { "address": ..., "transactions": [...] }
func (h *APIHandler) handleDetectAnomalies(c *gin.Context) {
	var req anomaliesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address", "address": req.Address})
		return
	}

	result, err := h.engine.DetectAnomalies(c.Request.Context(), req.Address, req.Transactions, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Detection failed", "details": err.Error()})
		return
	}

	h.alerts.EmitFromDetection(*result)
	c.JSON(http.StatusOK, result)
}

type analyzeTransactionRequest struct {
	Transaction models.TransactionRecord   `json:"transaction"`
	History     []models.TransactionRecord `json:"history"`
	Profile     models.UserProfile         `json:"profile"`
}

// handleAnalyzeTransaction scores one transaction in context.
// POST /api/v1/transactions/analyze
func (h *APIHandler) handleAnalyzeTransaction(c *gin.Context) {
	var req analyzeTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Transaction.Hash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Transaction hash is required"})
		return
	}

	analysis := h.engine.AnalyzeTransaction(req.Transaction, req.History, req.Profile, h.cfg.MarketGasGwei)
	c.JSON(http.StatusOK, analysis)
}

// handleCategorize classifies a single transaction.
// POST /api/v1/transactions/categorize
func (h *APIHandler) handleCategorize(c *gin.Context) {
	var tx models.TransactionRecord
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.engine.Categorize(tx))
}

// handleRecentAlerts returns the alert history, newest first.
// GET /api/v1/alerts/recent?limit=50
func (h *APIHandler) handleRecentAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	c.JSON(http.StatusOK, gin.H{
		"alerts": h.alerts.GetRecentAlerts(limit),
	})
}

// handleHealth returns engine status and capabilities for service discovery.
func (h *APIHandler) handleHealth(c *gin.Context) {
	t := h.engine.Thresholds()
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "TxRisk Scoring Engine v1.0",
		"capabilities": gin.H{
			"statistical_anomalies": true,
			"wash_trading":          true,
			"bot_behavior":          true,
			"coordination_proxies":  true,
			"risk_assessment":       true,
			"tx_categorization":     true,
		},
		"guards": gin.H{
			"anomaly":   t.MinAnomalyTxs,
			"zTests":    t.MinZTestTxs,
			"frequency": t.MinFrequencyTxs,
			"wash":      t.MinWashTxs,
			"bot":       t.MinBotTxs,
			"coord":     t.MinCoordTxs,
		},
	})
}

// BroadcastAlert adapts the hub into the alert manager's callback.
func BroadcastAlert(wsHub *Hub, log *logrus.Logger) func(heuristics.Alert) {
	return func(alert heuristics.Alert) {
		payload, err := marshalAlert(alert)
		if err != nil {
			log.WithError(err).Error("failed to marshal alert for broadcast")
			return
		}
		wsHub.Broadcast(payload)
	}
}
