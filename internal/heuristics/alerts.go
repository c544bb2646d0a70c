package heuristics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Alert & Webhook System
//
// Structured alert emission for review operations. Alerts are:
//   1. Broadcast via a callback (the WebSocket hub) to connected dashboards
//   2. Pushed to registered webhook endpoints (Slack, Discord, SIEM)
//   3. Kept in a bounded in-memory ring for recent alert history
//
// Webhook payloads are plain JSON, compatible with Slack incoming
// webhooks and generic SIEM collectors. Alert IDs are random UUIDs and
// live only on this side channel; scoring results never carry them, so
// identical inputs keep producing identical assessments.

// Alert is one structured risk alert
type Alert struct {
	ID          string                  `json:"id"`
	Timestamp   time.Time               `json:"timestamp"`
	Severity    models.Severity         `json:"severity"`
	AlertType   string                  `json:"alertType"` // risk_assessment/anomaly/wash_trading/bot_behavior/coordination
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Address     string                  `json:"address,omitempty"`
	Score       float64                 `json:"score,omitempty"`
	Assessment  *models.RiskAssessment  `json:"assessment,omitempty"`
	Detection   *models.AnomalyDetectionResult `json:"detection,omitempty"`
}

// WebhookEndpoint is a registered webhook receiver
type WebhookEndpoint struct {
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Enabled     bool              `json:"enabled"`
	Headers     map[string]string `json:"headers,omitempty"`
	MinSeverity models.Severity   `json:"minSeverity"` // Only send alerts at or above this severity
}

// AlertManager handles alert emission and webhook delivery
type AlertManager struct {
	mu            sync.RWMutex
	webhooks      []WebhookEndpoint
	recentAlerts  []Alert
	maxHistory    int
	httpClient    *http.Client
	alertCallback func(Alert)
	log           *logrus.Logger
}

// NewAlertManager creates an alert manager. broadcastFn may be nil when
// no live dashboard is attached.
func NewAlertManager(broadcastFn func(Alert), log *logrus.Logger) *AlertManager {
	if log == nil {
		log = logrus.New()
	}
	return &AlertManager{
		webhooks:      make([]WebhookEndpoint, 0),
		recentAlerts:  make([]Alert, 0),
		maxHistory:    1000,
		httpClient:    &http.Client{Timeout: 5 * time.Second},
		alertCallback: broadcastFn,
		log:           log,
	}
}

// RegisterWebhook adds a webhook endpoint
func (am *AlertManager) RegisterWebhook(name, url string, minSeverity models.Severity, headers map[string]string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.webhooks = append(am.webhooks, WebhookEndpoint{
		Name:        name,
		URL:         url,
		Enabled:     true,
		Headers:     headers,
		MinSeverity: minSeverity,
	})

	am.log.WithFields(logrus.Fields{
		"webhook":     name,
		"minSeverity": minSeverity,
	}).Info("registered webhook")
}

// RemoveWebhook removes a webhook by name
func (am *AlertManager) RemoveWebhook(name string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	for i, wh := range am.webhooks {
		if wh.Name == name {
			am.webhooks = append(am.webhooks[:i], am.webhooks[i+1:]...)
			return
		}
	}
}

// EmitAlert processes and distributes an alert
func (am *AlertManager) EmitAlert(alert Alert) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}

	am.mu.Lock()
	am.recentAlerts = append(am.recentAlerts, alert)
	if len(am.recentAlerts) > am.maxHistory {
		am.recentAlerts = am.recentAlerts[len(am.recentAlerts)-am.maxHistory:]
	}
	webhooks := make([]WebhookEndpoint, len(am.webhooks))
	copy(webhooks, am.webhooks)
	am.mu.Unlock()

	if am.alertCallback != nil {
		am.alertCallback(alert)
	}

	// Webhook delivery is async and non-blocking
	for _, wh := range webhooks {
		if !wh.Enabled {
			continue
		}
		if !severityMeetsThreshold(alert.Severity, wh.MinSeverity) {
			continue
		}
		go am.sendWebhook(wh, alert)
	}

	am.log.WithFields(logrus.Fields{
		"severity": alert.Severity,
		"type":     alert.AlertType,
		"address":  alert.Address,
	}).Info(alert.Title)
}

// EmitFromAssessment emits an alert for a completed risk assessment.
// LOW assessments never alert.
func (am *AlertManager) EmitFromAssessment(assessment models.RiskAssessment) {
	if assessment.OverallLevel == models.RiskLow {
		return
	}

	alertType := "risk_assessment"
	title := fmt.Sprintf("Risk level %s for %s", assessment.OverallLevel, assessment.Address)
	if assessment.Flags.RequiresInvestigation {
		alertType = "investigation_required"
		title = "Investigation required: " + assessment.Address
	}

	am.EmitAlert(Alert{
		Severity:    severityForLevel(assessment.OverallLevel),
		AlertType:   alertType,
		Title:       title,
		Description: assessmentDescription(assessment),
		Address:     assessment.Address,
		Score:       assessment.OverallScore,
		Assessment:  &assessment,
	})
}

// EmitFromDetection emits alerts for the detector verdicts of one
// anomaly detection run. Nothing fires on a clean run.
func (am *AlertManager) EmitFromDetection(detection models.AnomalyDetectionResult) {
	emit := func(alertType, title string, score float64) {
		severity := models.SeverityMedium
		if score >= 80 {
			severity = models.SeverityCritical
		} else if score >= 60 {
			severity = models.SeverityHigh
		}
		am.EmitAlert(Alert{
			Severity:  severity,
			AlertType: alertType,
			Title:     title,
			Address:   detection.Address,
			Score:     score,
			Detection: &detection,
		})
	}

	if detection.WashTrading.Detected {
		emit("wash_trading", "Wash trading patterns on "+detection.Address, detection.WashTrading.RiskScore)
	}
	if detection.BotBehavior.Detected {
		emit("bot_behavior", "Automation signatures on "+detection.Address, detection.BotBehavior.Probability)
	}
	if detection.Coordination.Detected {
		emit("coordination", "Coordination proxies on "+detection.Address, detection.Coordination.Score)
	}
	if detection.Flags.RequiresInvestigation {
		emit("anomaly", "Anomaly score requires investigation: "+detection.Address, detection.OverallAnomalyScore)
	}
}

// GetRecentAlerts returns the most recent alerts, newest first
func (am *AlertManager) GetRecentAlerts(limit int) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if limit <= 0 || limit > len(am.recentAlerts) {
		limit = len(am.recentAlerts)
	}

	start := len(am.recentAlerts) - limit
	result := make([]Alert, limit)
	for i := 0; i < limit; i++ {
		result[i] = am.recentAlerts[start+limit-1-i]
	}
	return result
}

// GetAlertsBySeverity returns alerts at or above a minimum severity
func (am *AlertManager) GetAlertsBySeverity(minSeverity models.Severity) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	var filtered []Alert
	for _, alert := range am.recentAlerts {
		if severityMeetsThreshold(alert.Severity, minSeverity) {
			filtered = append(filtered, alert)
		}
	}
	return filtered
}

// sendWebhook delivers one alert to one endpoint
func (am *AlertManager) sendWebhook(wh WebhookEndpoint, alert Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		am.log.WithError(err).Error("failed to marshal alert")
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewBuffer(payload))
	if err != nil {
		am.log.WithError(err).WithField("webhook", wh.Name).Error("failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for key, val := range wh.Headers {
		req.Header.Set(key, val)
	}

	resp, err := am.httpClient.Do(req)
	if err != nil {
		am.log.WithError(err).WithField("webhook", wh.Name).Warn("webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		am.log.WithFields(logrus.Fields{
			"webhook": wh.Name,
			"status":  resp.StatusCode,
		}).Warn("webhook rejected alert")
	}
}

// severityMeetsThreshold orders the closed Severity ladder
func severityMeetsThreshold(severity, minimum models.Severity) bool {
	levels := map[models.Severity]int{
		models.SeverityLow:      1,
		models.SeverityMedium:   2,
		models.SeverityHigh:     3,
		models.SeverityCritical: 4,
	}
	return levels[severity] >= levels[minimum]
}

// severityForLevel maps a risk level to the alert severity ladder
func severityForLevel(level models.RiskLevel) models.Severity {
	switch level {
	case models.RiskCritical:
		return models.SeverityCritical
	case models.RiskHigh:
		return models.SeverityHigh
	case models.RiskMedium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// assessmentDescription summarizes the drivers of an assessment
func assessmentDescription(a models.RiskAssessment) string {
	desc := fmt.Sprintf("overall score %.0f (%s)", a.OverallScore, a.OverallLevel)
	dims := []models.RiskFactor{a.Concentration, a.Volatility, a.Inactivity, a.NewAccount, a.Anomaly, a.Liquidity}
	for _, d := range dims {
		if d.Level == models.RiskHigh || d.Level == models.RiskCritical {
			desc += fmt.Sprintf("; %s %s (%.0f)", d.Name, d.Level, d.Score)
		}
	}
	return desc
}
