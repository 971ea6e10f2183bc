// Program rvstress runs a concurrent workload against a rendezvous channel
// and reports whether every value spoken was heard exactly once.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/creachadair/rendezvous/internal/stress"
	"github.com/creachadair/rendezvous/promstats"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel) // checked by loadConfig
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, log.WithField("run", uuid.NewString()), cfg); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes one workload described by cfg, logging progress and results
// to log. It reports an error if the workload failed.
func run(ctx context.Context, log *logrus.Entry, cfg fileConfig) error {
	ch := cfg.Workload.NewChannel()
	reg := prometheus.NewRegistry()
	if err := reg.Register(promstats.New(cfg.Name, ch)); err != nil {
		log.WithError(err).Error("Registering metrics")
		return err
	}

	log.WithFields(logrus.Fields{
		"speakers":  cfg.Workload.Speakers,
		"listeners": cfg.Workload.Listeners,
		"rounds":    cfg.Workload.Rounds,
		"fifo":      cfg.Workload.FIFO,
		"timeout":   cfg.Workload.Timeout,
	}).Info("Starting workload")

	rep, err := stress.Run(ctx, cfg.Workload, ch)
	if rep != nil {
		log.WithFields(logrus.Fields{
			"spoken":  rep.Spoken,
			"heard":   rep.Heard,
			"aborted": rep.Channel.Aborted,
			"elapsed": rep.Elapsed,
		}).Info("Workload finished")
	}
	logMetrics(log, reg)

	var merr *stress.MismatchError
	switch {
	case errors.As(err, &merr):
		log.WithFields(logrus.Fields{
			"missing":    merr.Missing,
			"duplicated": merr.Duplicated,
			"unknown":    merr.Unknown,
		}).Error("Values heard do not match values spoken")
		return err
	case err != nil:
		log.WithError(err).Error("Workload failed")
		return err
	}
	log.Info("OK: every value was heard exactly once")
	return nil
}

// logMetrics logs the current value of each metric in reg at debug level.
func logMetrics(log *logrus.Entry, reg *prometheus.Registry) {
	mfs, err := reg.Gather()
	if err != nil {
		log.WithError(err).Warn("Gathering metrics")
		return
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var v float64
			if c := m.GetCounter(); c != nil {
				v = c.GetValue()
			} else if g := m.GetGauge(); g != nil {
				v = g.GetValue()
			}
			log.WithField("metric", mf.GetName()).WithField("value", v).Debug("Metric")
		}
	}
}
