package heuristics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Engine is the facade over the detector suite. It is stateless apart
// from its immutable configuration, so one instance serves concurrent
// callers. Every operation takes an explicit reference time; two calls
// with the same inputs and the same asOf produce identical results.
type Engine struct {
	cfg      Thresholds
	registry ProtocolRegistry
	log      *logrus.Logger
}

// Composite weights for the overall anomaly score. Statistical outliers
// carry the most signal; coordination proxies the least.
const (
	anomalyWeightStatistical = 0.30
	anomalyWeightWash        = 0.25
	anomalyWeightBot         = 0.25
	anomalyWeightCoord       = 0.20
)

// NewEngine wires a detector engine. A nil registry falls back to the
// built-in mainnet table; a nil logger gets a default one.
func NewEngine(cfg Thresholds, registry ProtocolRegistry, log *logrus.Logger) *Engine {
	if registry == nil {
		registry = DefaultProtocolRegistry()
	}
	if log == nil {
		log = logrus.New()
	}
	return &Engine{cfg: cfg, registry: registry, log: log}
}

// Thresholds returns the engine's immutable configuration.
func (e *Engine) Thresholds() Thresholds {
	return e.cfg
}

// Registry returns the engine's protocol table.
func (e *Engine) Registry() ProtocolRegistry {
	return e.registry
}

// DetectAnomalies runs the four detectors concurrently over one
// address's history and aggregates their verdicts. Histories below the
// overall minimum return a sentinel result carrying only the reason,
// never an error: thin history is an answer, not a failure.
func (e *Engine) DetectAnomalies(ctx context.Context, address string, txs []models.TransactionRecord, asOf time.Time) (*models.AnomalyDetectionResult, error) {
	result := &models.AnomalyDetectionResult{
		Address:          address,
		Timestamp:        asOf,
		TransactionCount: len(txs),
	}
	if len(txs) < e.cfg.MinAnomalyTxs {
		result.Reason = fmt.Sprintf("anomaly detection requires at least %d transactions, got %d", e.cfg.MinAnomalyTxs, len(txs))
		return result, nil
	}

	// The detectors are pure functions over an immutable snapshot, so the
	// fan-out needs no locking. Cancellation aborts the whole call.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.StatisticalAnomalies = DetectStatisticalAnomalies(e.cfg, txs)
		return ctx.Err()
	})
	g.Go(func() error {
		result.WashTrading = DetectWashTrading(e.cfg, txs)
		return ctx.Err()
	})
	g.Go(func() error {
		result.BotBehavior = DetectBotBehavior(e.cfg, txs)
		return ctx.Err()
	})
	g.Go(func() error {
		result.Coordination = DetectCoordinatedActivity(e.cfg, txs)
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("anomaly detection aborted: %w", err)
	}

	result.OverallAnomalyScore = math.Min(100,
		anomalyWeightStatistical*maxAnomalyScore(result.StatisticalAnomalies)+
			anomalyWeightWash*result.WashTrading.RiskScore+
			anomalyWeightBot*result.BotBehavior.Probability+
			anomalyWeightCoord*result.Coordination.Score)
	result.Confidence = detectionConfidence(result)

	result.Flags = models.AnomalyFlags{
		RequiresInvestigation: result.OverallAnomalyScore > e.cfg.InvestigationScore,
		WashTradingSuspected:  result.WashTrading.Detected,
		BotBehaviorSuspected:  result.BotBehavior.Detected,
		CoordinationSuspected: result.Coordination.Detected,
	}

	e.log.WithFields(logrus.Fields{
		"address":      address,
		"transactions": len(txs),
		"score":        result.OverallAnomalyScore,
		"investigate":  result.Flags.RequiresInvestigation,
	}).Debug("anomaly detection complete")
	return result, nil
}

// AssessRisk runs the full pipeline: anomaly detection feeds the anomaly
// dimension of the six-dimension composite assessment.
func (e *Engine) AssessRisk(ctx context.Context, txs []models.TransactionRecord, profile models.UserProfile, asOf time.Time) (*models.RiskAssessment, error) {
	detection, err := e.DetectAnomalies(ctx, profile.Address, txs, asOf)
	if err != nil {
		return nil, err
	}
	assessment := BuildRiskAssessment(e.cfg, e.registry, txs, profile, detection, asOf)

	e.log.WithFields(logrus.Fields{
		"address": profile.Address,
		"score":   assessment.OverallScore,
		"level":   assessment.OverallLevel,
	}).Info("risk assessment complete")
	return &assessment, nil
}

// AnalyzeTransaction scores one transaction against its history.
func (e *Engine) AnalyzeTransaction(tx models.TransactionRecord, history []models.TransactionRecord, profile models.UserProfile, marketGasGwei float64) models.TransactionAnalysis {
	return AnalyzeTransaction(e.cfg, e.registry, tx, history, profile, marketGasGwei)
}

// Categorize classifies one transaction against the protocol table.
func (e *Engine) Categorize(tx models.TransactionRecord) models.CategoryResult {
	return CategorizeTransaction(e.registry, tx)
}

// maxAnomalyScore is the strongest single statistical detection, or 0.
func maxAnomalyScore(anomalies []models.StatisticalAnomaly) float64 {
	max := 0.0
	for _, a := range anomalies {
		if a.Score > max {
			max = a.Score
		}
	}
	return max
}

// detectionConfidence averages the confidences of the detectors that
// actually ran. The statistical component contributes the mean anomaly
// confidence when anything fired, otherwise a fixed 70: a clean scan
// over sufficient data is itself an informative verdict.
func detectionConfidence(r *models.AnomalyDetectionResult) float64 {
	statConf := 70.0
	if len(r.StatisticalAnomalies) > 0 {
		sum := 0.0
		for _, a := range r.StatisticalAnomalies {
			sum += a.Confidence
		}
		statConf = sum / float64(len(r.StatisticalAnomalies))
	}

	confs := []float64{statConf}
	if r.WashTrading.Reason == "" {
		confs = append(confs, r.WashTrading.Confidence)
	}
	if r.BotBehavior.Reason == "" {
		confs = append(confs, r.BotBehavior.Confidence)
	}
	if r.Coordination.Reason == "" {
		confs = append(confs, r.Coordination.Confidence)
	}

	sum := 0.0
	for _, c := range confs {
		sum += c
	}
	return sum / float64(len(confs))
}
