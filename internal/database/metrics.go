package database

import (
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

const upsertMetric = `
	INSERT INTO metrics (metric_name, label_key, label_value, metric_value)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (metric_name, label_key, label_value)
	DO UPDATE SET metric_value = excluded.metric_value;`

func (d *DB) SaveMetric(metricName string, value float64) error {
	_, err := d.db.Exec(d.db.Rebind(upsertMetric), metricName, "", "", value)
	if err != nil {
		return fmt.Errorf("failed to save metric: %w", err)
	}
	log.Debugf("Metric saved: %s = %f", metricName, value)
	return nil
}

func (d *DB) GetMetric(metricName string) (float64, error) {
	var value float64
	query := d.db.Rebind(`
	SELECT metric_value
	FROM metrics
	WHERE metric_name = ? AND label_key = '' AND label_value = '';`)
	err := d.db.Get(&value, query, metricName)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debugf("Metric %s not found in the database, defaulting to 0", metricName)
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to get metric %s: %w", metricName, err)
	}
	log.Debugf("Metric loaded: %s = %f", metricName, value)
	return value, nil
}

func (d *DB) SaveMetricWithLabels(metricName, labelKey, labelValue string, value float64) error {
	if labelKey == "" || labelValue == "" {
		return fmt.Errorf("metric %s needs a label key and value", metricName)
	}
	_, err := d.db.Exec(d.db.Rebind(upsertMetric), metricName, labelKey, labelValue, value)
	if err != nil {
		return fmt.Errorf("failed to save metric with labels: %w", err)
	}
	log.Debugf("Metric with labels saved: %s[%s=%s] = %f", metricName, labelKey, labelValue, value)
	return nil
}

// GetMetricsWithLabels fetches all labelled values of a metric as labelKey -> labelValue -> value
func (d *DB) GetMetricsWithLabels(metricName string) (map[string]map[string]float64, error) {
	var rows []struct {
		LabelKey   string  `db:"label_key"`
		LabelValue string  `db:"label_value"`
		Value      float64 `db:"metric_value"`
	}
	query := d.db.Rebind(`
	SELECT label_key, label_value, metric_value
	FROM metrics
	WHERE metric_name = ? AND label_key <> '' AND label_value <> '';`)
	if err := d.db.Select(&rows, query, metricName); err != nil {
		return nil, fmt.Errorf("failed to query metrics with labels: %w", err)
	}

	metrics := make(map[string]map[string]float64)
	for _, r := range rows {
		if _, exists := metrics[r.LabelKey]; !exists {
			metrics[r.LabelKey] = make(map[string]float64)
		}
		metrics[r.LabelKey][r.LabelValue] = r.Value
	}
	return metrics, nil
}
