// Package runtime assembles the long-lived application dependencies at
// startup: datastore, models, reference data, mailer and metrics. The
// resulting Context is read-only after Build returns.
package runtime

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wildsight/wildsight-go/internal/condition"
	"github.com/wildsight/wildsight-go/internal/conf"
	"github.com/wildsight/wildsight-go/internal/datastore"
	"github.com/wildsight/wildsight-go/internal/errors"
	"github.com/wildsight/wildsight-go/internal/logging"
	"github.com/wildsight/wildsight-go/internal/mailer"
	"github.com/wildsight/wildsight-go/internal/observability"
	"github.com/wildsight/wildsight-go/internal/refdata"
	"github.com/wildsight/wildsight-go/internal/wildnet"
)

// Context holds the shared application state. Models and reference data
// may be absent; the service degrades rather than refusing to start.
type Context struct {
	Settings   *conf.Settings
	DS         datastore.Interface
	Detector   wildnet.LoadResult
	Classifier *condition.Classifier
	RefData    *refdata.Table
	Mailer     mailer.Mailer
	Metrics    *observability.Metrics
	Registry   *prometheus.Registry
}

// Build wires the application. Only the datastore and metrics registry
// are hard requirements; every model or data file that fails to load is
// logged and left nil.
func Build(settings *conf.Settings) (*Context, error) {
	logger := logging.ForService("runtime")

	ds := datastore.New(settings)
	if ds == nil {
		return nil, errors.Newf("no database backend enabled").
			Component("runtime").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := ds.Open(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		Settings: settings,
		DS:       ds,
		Mailer:   mailer.New(settings.Mail),
		Metrics:  metrics,
		Registry: registry,
	}

	ctx.Detector = wildnet.Load(&settings.Models.Detection)
	metrics.SetModelReady("detection", ctx.Detector.Loaded())
	if !ctx.Detector.Loaded() {
		logger.Warn("detection model unavailable, detection endpoints degrade to Unknown",
			"path", settings.Models.Detection.Path,
			"error", ctx.Detector.Err)
	}

	classifier, err := condition.New(&settings.Models.Condition)
	if err != nil {
		logger.Warn("condition model unavailable, condition degrades to Unknown",
			"path", settings.Models.Condition.Path,
			"error", err)
	}
	ctx.Classifier = classifier
	metrics.SetModelReady("condition", classifier != nil)

	if settings.Reference.Path != "" {
		table, err := refdata.Load(settings.Reference.Path)
		if err != nil {
			logger.Warn("reference data unavailable, sightings are not enriched",
				"path", settings.Reference.Path,
				"error", err)
		} else {
			ctx.RefData = table
		}
	}

	logger.Info("application context built",
		"detector_loaded", ctx.Detector.Loaded(),
		"classifier_loaded", ctx.Classifier != nil,
		"refdata_loaded", ctx.RefData != nil,
		"mail_enabled", ctx.Mailer.Enabled())
	return ctx, nil
}

// Health summarizes component availability for the health endpoint.
type Health struct {
	Status     string `json:"status"`
	Database   bool   `json:"database"`
	Detector   bool   `json:"detector"`
	Classifier bool   `json:"classifier"`
	RefData    bool   `json:"reference_data"`
	Mail       bool   `json:"mail"`
}

// Health reports ok when everything is loaded and degraded when any
// optional component is missing. The database is a build precondition, so
// a reachable server always reports it true.
func (c *Context) Health() Health {
	h := Health{
		Database:   c.DS != nil,
		Detector:   c.Detector.Loaded(),
		Classifier: c.Classifier != nil,
		RefData:    c.RefData != nil,
		Mail:       c.Mailer != nil && c.Mailer.Enabled(),
	}
	if h.Database && h.Detector && h.Classifier && h.RefData {
		h.Status = "ok"
	} else {
		h.Status = "degraded"
	}
	return h
}

// Close releases the datastore connection.
func (c *Context) Close() error {
	if c.DS != nil {
		return c.DS.Close()
	}
	return nil
}
