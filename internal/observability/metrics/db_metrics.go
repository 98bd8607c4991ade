package metrics

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const dbScrapeTimeout = 2 * time.Second

// dbCollector reads lifecycle and classification backlogs at scrape time.
type dbCollector struct {
	db     *sql.DB
	logger *log.Logger

	pendingChanges *prometheus.Desc
	unclassified   *prometheus.Desc
}

func newDBCollector(db *sql.DB, logger *log.Logger) *dbCollector {
	return &dbCollector{
		db:     db,
		logger: logger,
		pendingChanges: prometheus.NewDesc(
			metricPrefix+"pending_changes",
			"Configuration changes by lifecycle status",
			[]string{"status"}, nil,
		),
		unclassified: prometheus.NewDesc(
			metricPrefix+"unclassified_readings_24h",
			"Readings stored as unclassified in the last 24 hours",
			nil, nil,
		),
	}
}

func (c *dbCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pendingChanges
	ch <- c.unclassified
}

func (c *dbCollector) Collect(ch chan<- prometheus.Metric) {
	if c.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbScrapeTimeout)
	defer cancel()

	counts, err := c.changesByStatus(ctx)
	if err != nil {
		c.logf("pending changes", err)
	}
	for status, count := range counts {
		ch <- prometheus.MustNewConstMetric(c.pendingChanges, prometheus.GaugeValue, count, status)
	}

	var unclassified int64
	err = c.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM sensor_readings
WHERE payload_type = 'unclassified' AND received_at > now() - interval '24 hours'`).Scan(&unclassified)
	if err != nil {
		c.logf("unclassified readings", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.unclassified, prometheus.GaugeValue, float64(unclassified))
}

func (c *dbCollector) changesByStatus(ctx context.Context) (map[string]float64, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sensor_pending_changes GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]float64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = float64(count)
	}
	return counts, rows.Err()
}

func (c *dbCollector) logf(what string, err error) {
	if c.logger != nil {
		c.logger.Printf("event=metrics_scrape_failed metric=%q error=%v", what, err)
	}
}
