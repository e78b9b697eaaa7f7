package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/AllenInstitute/sweep-qc-tool/internal/api"
	"github.com/AllenInstitute/sweep-qc-tool/internal/autoqc"
	"github.com/AllenInstitute/sweep-qc-tool/internal/bus"
	"github.com/AllenInstitute/sweep-qc-tool/internal/dataset"
	"github.com/AllenInstitute/sweep-qc-tool/internal/fx"
	"github.com/AllenInstitute/sweep-qc-tool/internal/session"
	"github.com/AllenInstitute/sweep-qc-tool/internal/stimulus"
	"github.com/AllenInstitute/sweep-qc-tool/internal/sweepplot"
	"github.com/AllenInstitute/sweep-qc-tool/internal/units"
	"github.com/AllenInstitute/sweep-qc-tool/internal/version"
)

var (
	listen       = flag.String("listen", ":8080", "Listen address")
	recordingArg = flag.String("recording", "", "Converted recording to load at startup (sqlite file)")
	ontologyArg  = flag.String("ontology", "", "Stimulus ontology file (defaults to the embedded ontology)")
	criteriaArg  = flag.String("criteria", "", "QC criteria file (defaults to the embedded criteria)")
	unitsArg     = flag.String("units", units.Millivolt, "Display units for plots: a voltage unit (v, mv) applies to current-clamp responses, a current unit (a, pa, na) to voltage-clamp responses")
	exportDir    = flag.String("export-dir", "", "Restrict pipeline-input exports to this directory")
	devMode      = flag.Bool("dev", false, "Run with a synthetic recording instead of a converted file")
)

func main() {
	flag.Parse()
	log.Printf("sweep-qc-tool %s", version.String())

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValid(*unitsArg) {
		log.Fatalf("Invalid units %q, valid units are: %s", *unitsArg, units.GetValidUnitsString())
	}

	b := bus.New()
	sess := session.New(b, autoqc.NewThreshold())
	tracker := fx.NewTracker(b)

	ontology := stimulus.Default()
	if *ontologyArg != "" {
		var err error
		ontology, err = stimulus.Load(*ontologyArg)
		if err != nil {
			log.Fatalf("Failed to load stimulus ontology: %v", err)
		}
	}
	if err := sess.SetOntology(ontology, *ontologyArg); err != nil {
		log.Fatalf("Failed to set stimulus ontology: %v", err)
	}

	criteria := autoqc.DefaultCriteria()
	if *criteriaArg != "" {
		var err error
		criteria, err = autoqc.LoadCriteria(*criteriaArg)
		if err != nil {
			log.Fatalf("Failed to load QC criteria: %v", err)
		}
	}
	sess.SetCriteria(criteria, *criteriaArg)

	plotCfg := sweepplot.DefaultConfig()
	switch {
	case units.IsVoltage(*unitsArg):
		plotCfg.VoltageUnits = *unitsArg
	case units.IsCurrent(*unitsArg):
		plotCfg.CurrentUnits = *unitsArg
	}

	srv := api.NewServer(sess, tracker, plotCfg)
	if *exportDir != "" {
		srv.RestrictExportsTo(*exportDir)
	}

	mux := http.NewServeMux()
	if err := srv.AttachAdminRoutes(mux); err != nil {
		log.Fatalf("Failed to attach admin routes: %v", err)
	}
	mux.Handle("/api/", srv.ServeMux())

	// Preload a recording when one was named; later loads go through the API.
	switch {
	case *devMode:
		if err := sess.LoadRecording(dataset.Synthetic("synthetic.db", 40)); err != nil {
			log.Fatalf("Failed to load synthetic recording: %v", err)
		}
	case *recordingArg != "":
		ds, err := dataset.OpenSQLite(*recordingArg)
		if err != nil {
			log.Fatalf("Failed to open recording: %v", err)
		}
		if err := sess.LoadRecording(ds); err != nil {
			log.Fatalf("Failed to load recording: %v", err)
		}
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	go func() {
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
