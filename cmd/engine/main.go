package main

import (
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rawblock/txrisk-engine/internal/api"
	"github.com/rawblock/txrisk-engine/internal/config"
	"github.com/rawblock/txrisk-engine/internal/heuristics"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./txrisk.yaml if present)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Fatal("invalid log level")
	}
	log.SetLevel(level)

	log.WithFields(logrus.Fields{
		"port":     cfg.Port,
		"webhooks": len(cfg.Webhooks),
	}).Info("starting transaction risk scoring engine")

	wsHub := api.NewHub(log)
	go wsHub.Run()

	alerts := heuristics.NewAlertManager(api.BroadcastAlert(wsHub, log), log)
	for _, wh := range cfg.Webhooks {
		alerts.RegisterWebhook(wh.Name, wh.URL, wh.MinSeverity, nil)
	}

	engine := heuristics.NewEngine(cfg.Thresholds(), heuristics.DefaultProtocolRegistry(), log)

	r := api.SetupRouter(engine, alerts, wsHub, cfg, log)
	if err := r.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
