package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/jafarizadeh/wifi-ter-sim/core"
	"github.com/jafarizadeh/wifi-ter-sim/internal/logging"
	"github.com/jafarizadeh/wifi-ter-sim/internal/observability"
	"github.com/jafarizadeh/wifi-ter-sim/internal/radio"
	"github.com/jafarizadeh/wifi-ter-sim/internal/report"
	"github.com/jafarizadeh/wifi-ter-sim/internal/sim/state"
	"github.com/jafarizadeh/wifi-ter-sim/model"
	"github.com/jafarizadeh/wifi-ter-sim/timectrl"
)

// processConfig is the environment-driven part of the configuration:
// everything about where the process reports to, as opposed to what
// scenario it runs.
type processConfig struct {
	MetricsEnabled bool   `env:"ROAM_METRICS_ENABLED" envDefault:"true"`
	MetricsAddr    string `env:"ROAM_METRICS_ADDR" envDefault:":9090"`
	ReportDir      string `env:"ROAM_REPORT_DIR" envDefault:"out"`
}

func main() {
	duration := flag.Duration("duration", 40*time.Second, "total simulation duration")
	tick := flag.Duration("tick", 200*time.Millisecond, "decision tick interval")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")

	hysteresis := flag.Float64("hysteresis-db", 4.0, "margin a candidate must exceed the serving AP by")
	dwell := flag.Duration("dwell", 1*time.Second, "time a candidate must stay preferable before a scan")
	minGap := flag.Duration("min-gap", 2*time.Second, "minimum time between scan triggers")

	txAp1 := flag.Float64("tx-ap1-dbm", 20.0, "transmit power of ap-1 in dBm")
	txAp2 := flag.Float64("tx-ap2-dbm", 16.0, "transmit power of ap-2 in dBm")
	refLoss := flag.Float64("ref-loss-db", 46.6777, "path loss at the 1 m reference distance")
	exponent := flag.Float64("path-loss-exponent", 3.0, "log-distance path loss exponent")

	speed := flag.Float64("walk-speed", 1.25, "client walking speed in m/s along the corridor")
	moveStart := flag.Duration("move-start", 2*time.Second, "when the client starts walking")
	scanLatency := flag.Duration("scan-latency", 50*time.Millisecond, "simulated scan latency")
	shadowSigma := flag.Float64("shadowing-sigma-db", 0, "log-normal shadowing sigma, 0 disables")
	seed := flag.Int64("seed", 42, "shadowing random seed")

	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg processConfig
	if err := env.Parse(&cfg); err != nil {
		log.Error(ctx, "parse environment", logging.String("error", err.Error()))
		os.Exit(1)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "init tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	// ==== Metrics ====

	registry := prometheus.NewRegistry()
	collector, err := observability.NewRoamCollector(registry)
	if err != nil {
		log.Error(ctx, "register roam metrics", logging.String("error", err.Error()))
		os.Exit(1)
	}
	radioCollector, err := observability.NewRadioCollector(registry)
	if err != nil {
		log.Error(ctx, "register radio metrics", logging.String("error", err.Error()))
		os.Exit(1)
	}

	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
	}

	// ==== Session participants and routing plan ====

	session := state.NewSessionState(log, state.WithMetricsRecorder(collector))
	participants := []*model.Participant{
		{ID: "sta-1", Role: model.RoleClient, OutInterfaceID: "sta-1/wlan0"},
		{ID: "srv-1", Role: model.RoleServer, OutInterfaceID: "srv-1/eth0"},
		{ID: "ap-node-1", Role: model.RolePeerAccessPoint},
		{ID: "ap-node-2", Role: model.RolePeerAccessPoint},
	}
	for _, p := range participants {
		if err := session.AddParticipant(p); err != nil {
			log.Error(ctx, "add participant", logging.String("error", err.Error()))
			os.Exit(1)
		}
	}

	plan := core.RoutingPlan{
		ClientID:             "sta-1",
		ServerID:             "srv-1",
		ClientAddr:           "10.2.0.10",
		InfrastructureCIDR:   "10.2.0.0/24",
		ClientOutInterfaceID: "sta-1/wlan0",
		ServerOutInterfaceID: "srv-1/eth0",
		APs: map[core.LinkIdentifier]core.APEndpoint{
			"ap-1": {ParticipantID: "ap-node-1", WifiAddr: "10.2.0.1", BackboneAddr: "10.1.1.1"},
			"ap-2": {ParticipantID: "ap-node-2", WifiAddr: "10.2.0.2", BackboneAddr: "10.1.1.2"},
		},
	}
	synchronizer, err := core.NewRoutingSynchronizer(plan, session, log)
	if err != nil {
		log.Error(ctx, "build routing synchronizer", logging.String("error", err.Error()))
		os.Exit(1)
	}

	// ==== Radio knowledge base and motion ====

	kb := core.NewKnowledgeBase()
	aps := []*core.CandidateAccessPoint{
		{LinkID: "ap-1", NodeID: "ap-node-1", TxPowerDbm: *txAp1},
		{LinkID: "ap-2", NodeID: "ap-node-2", TxPowerDbm: *txAp2},
	}
	for _, ap := range aps {
		if err := kb.AddCandidate(ap); err != nil {
			log.Error(ctx, "add candidate", logging.String("error", err.Error()))
			os.Exit(1)
		}
	}

	start := time.Now().UTC()
	motions := map[string]core.MotionModel{
		"ap-node-1": &core.StaticMotionModel{Pos: core.Vec3{X: 0, Y: 0, Z: 2}},
		"ap-node-2": &core.StaticMotionModel{Pos: core.Vec3{X: 40, Y: 0, Z: 2}},
		"sta-1": &core.ConstantVelocityMotionModel{
			Start:     core.Vec3{X: 2, Y: 3, Z: 1.5},
			Velocity:  core.Vec3{X: *speed},
			MoveStart: start.Add(*moveStart),
		},
	}
	for nodeID, motion := range motions {
		kb.SetNodePosition(nodeID, motion.Position(start))
	}

	estimator := &core.LinkQualityEstimator{RefLossDb: *refLoss, Exponent: *exponent}
	stack := radio.NewSimulatedStack(kb, estimator, radio.Config{
		ClientNodeID:     "sta-1",
		ScanLatency:      *scanLatency,
		ShadowingSigmaDb: *shadowSigma,
		Seed:             *seed,
	}, radio.WithLogger(log), radio.WithMetrics(radioCollector))

	// ==== Decision engine ====

	recorder := core.NewRoamEventRecorder()
	engine := core.NewHandoverDecisionEngine(
		kb,
		estimator,
		core.NewAssociationObserver(stack),
		stack,
		"sta-1",
		core.DecisionConfig{HysteresisDb: *hysteresis, Dwell: *dwell, MinTriggerGap: *minGap},
		core.WithServingSync(synchronizer),
		core.WithRecorder(recorder),
		core.WithLogger(log),
		core.WithMetrics(collector),
	)

	// Seed the first association through the normal scan path.
	stack.Advance(ctx, start)
	stack.TriggerScan(core.UnassociatedLink)

	// ==== Tick loop ====

	positions := report.NewPositionLog()
	tracer := otel.Tracer("roamsim")

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(start, *tick, mode)
	tc.AddListener(func(simTime time.Time) {
		tickCtx, span := tracer.Start(ctx, "decision_tick")
		defer span.End()

		for nodeID, motion := range motions {
			pos := motion.Position(simTime)
			kb.SetNodePosition(nodeID, pos)
			positions.Add(simTime, nodeID, pos)
		}

		stack.Advance(tickCtx, simTime)

		began := time.Now()
		engine.Tick(tickCtx, simTime)
		collector.ObserveTickDuration(time.Since(began))
		collector.SetServing(string(stack.ServingLink()))
	})

	log.Info(ctx, "starting roaming session",
		logging.Any("duration", *duration),
		logging.Any("tick", *tick),
		logging.Int("access_points", len(aps)),
	)
	done := tc.Start(ctx, *duration)
	<-done

	// ==== Reports ====

	writer, err := report.NewWriter(cfg.ReportDir)
	if err != nil {
		log.Error(ctx, "open report directory", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if err := writer.WriteRoamEvents(recorder.Events(), start); err != nil {
		log.Error(ctx, "write roam events", logging.String("error", err.Error()))
	}
	if err := writer.WritePositionSamples(positions.Samples(), start); err != nil {
		log.Error(ctx, "write position samples", logging.String("error", err.Error()))
	}

	summary := report.RunSummary{
		Duration:     *duration,
		TickInterval: *tick,
	}
	for _, ev := range recorder.Events() {
		if ev.Type == model.RoamEventRoam {
			summary.RoamCount++
		}
	}
	if first, ok := recorder.FirstRoamTime(); ok {
		summary.HasRoamed = true
		summary.FirstRoamAfter = first.Sub(start)
	}
	if err := writer.WriteSummary(summary); err != nil {
		log.Error(ctx, "write summary", logging.String("error", err.Error()))
	}

	if summary.HasRoamed {
		fmt.Printf("first roam after %s (%d roams total)\n", summary.FirstRoamAfter, summary.RoamCount)
	} else {
		fmt.Println("no roam occurred")
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn(ctx, "metrics shutdown failed", logging.String("error", err.Error()))
		}
	}
	log.Info(ctx, "session complete", logging.Int("roams", summary.RoamCount))
}
