package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/trezcool/hazira/apps/api/echo"
	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/attendance"
	"github.com/trezcool/hazira/core/branch"
	"github.com/trezcool/hazira/core/enrollment"
	"github.com/trezcool/hazira/core/lecture"
	"github.com/trezcool/hazira/core/student"
	"github.com/trezcool/hazira/core/teacher"
	logsvc "github.com/trezcool/hazira/services/logger"
	"github.com/trezcool/hazira/services/metrics"
	"github.com/trezcool/hazira/storage/database"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	storeLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "STORE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	storeLogger.Enable(!conf.Debug)

	if err := conf.Validate(); err != nil {
		logger.Fatal(err.Error(), err)
	}

	// set up store
	ctx := context.Background()
	backend, err := database.OpenStore(ctx, conf, storeLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up %s store: %v", conf.Store.Engine, err), err)
	}
	store, err := metrics.NewStore(backend, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal(fmt.Sprintf("instrumenting store: %v", err), err)
	}
	defer func() {
		if err = store.Close(); err != nil {
			storeLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	branchSvc := branch.NewService(store)
	teacherSvc := teacher.NewService(store, branchSvc)
	lectureSvc := lecture.NewService(store, branchSvc, teacherSvc)
	enrollmentSvc := enrollment.NewService(store, branchSvc)
	studentSvc := student.NewService(store, enrollmentSvc)
	attendanceSvc := attendance.NewService(studentSvc, lectureSvc, branchSvc, enrollmentSvc, conf.Location())

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q, store %q", conf.Build, conf.Store.Engine))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	branch.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - prometheus collectors, the store's included.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("store").Set(conf.Store.Engine)
	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			BranchSvc:     branchSvc,
			TeacherSvc:    teacherSvc,
			LectureSvc:    lectureSvc,
			StudentSvc:    studentSvc,
			EnrollmentSvc: enrollmentSvc,
			AttendanceSvc: attendanceSvc,
			Validate:      validate,
			Translator:    translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
