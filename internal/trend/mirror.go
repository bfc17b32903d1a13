// Package trend keeps a DuckDB mirror of numeric equipment readings.
// Every approved-or-not equipment log fans out into one row per metric
// so that range and aggregate queries never touch the sqlite records
// database. The mirror is best-effort: a failed write is logged by the
// caller and the record database stays authoritative.
package trend

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/facility-logbook/backend/internal/models"
)

const (
	defaultBatchSize = 512
	flushInterval    = 30 * time.Second
	maxQueries       = 3
)

// Reading is one numeric sample from an equipment log.
type Reading struct {
	Ts            time.Time `json:"ts"`
	Site          string    `json:"site"`
	EquipmentType string    `json:"equipmentType"`
	EquipmentID   string    `json:"equipmentId"`
	Metric        string    `json:"metric"`
	Value         float64   `json:"value"`
}

// Mirror is the DuckDB-backed reading store.
type Mirror struct {
	db        *sql.DB
	dbPath    string
	batchSize int

	mu        sync.Mutex
	batch     []Reading
	lastFlush time.Time
	total     int64
	lastError error

	// Limits concurrent aggregate queries to keep memory bounded.
	querySem chan struct{}
}

// Open creates or reopens the mirror database at path. Threads and
// memLimit map straight onto DuckDB pragmas.
func Open(path string, threads int, memLimit string) (*Mirror, error) {
	if threads <= 0 {
		threads = 2
	}
	if memLimit == "" {
		memLimit = "512MB"
	}
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", memLimit),
			fmt.Sprintf("PRAGMA threads=%d", threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create duckdb connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			ts             BIGINT NOT NULL,
			site           VARCHAR,
			equipment_type VARCHAR NOT NULL,
			equipment_id   VARCHAR NOT NULL,
			metric         VARCHAR NOT NULL,
			value          DOUBLE NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create readings table: %w", err)
	}

	m := &Mirror{
		db:        db,
		dbPath:    path,
		batchSize: defaultBatchSize,
		batch:     make([]Reading, 0, defaultBatchSize),
		lastFlush: time.Now(),
		querySem:  make(chan struct{}, maxQueries),
	}
	if err := m.db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&m.total); err != nil {
		db.Close()
		return nil, fmt.Errorf("count readings: %w", err)
	}
	return m, nil
}

// Record buffers readings. The batch flushes when it fills or when the
// flush interval has elapsed.
func (m *Mirror) Record(readings ...Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batch = append(m.batch, readings...)
	m.total += int64(len(readings))
	if len(m.batch) >= m.batchSize || time.Since(m.lastFlush) > flushInterval {
		if err := m.flushLocked(); err != nil {
			m.lastError = err
		}
	}
}

// Flush forces buffered readings to disk. Query methods call it so
// reads always see the latest samples.
func (m *Mirror) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked()
}

// LastError returns the most recent background flush failure.
func (m *Mirror) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// Len returns the number of readings recorded since open.
func (m *Mirror) Len() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// flushLocked writes the batch through the native Appender API.
func (m *Mirror) flushLocked() error {
	if len(m.batch) == 0 {
		return nil
	}
	conn, err := m.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("not a duckdb connection")
		}
		appender, err := duckdb.NewAppenderFromConn(dConn, "", "readings")
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}
		defer appender.Close()

		for _, r := range m.batch {
			err := appender.AppendRow(
				r.Ts.UnixMilli(),
				r.Site,
				r.EquipmentType,
				r.EquipmentID,
				r.Metric,
				r.Value,
			)
			if err != nil {
				return fmt.Errorf("append row: %w", err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return err
	}

	m.batch = m.batch[:0]
	m.lastFlush = time.Now()
	return nil
}

// Bucket is one aggregated point of a series query.
type Bucket struct {
	Ts    time.Time `json:"ts"`
	Avg   float64   `json:"avg"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
	Count int64     `json:"count"`
}

// SeriesQuery selects one metric of one equipment over a time range,
// grouped into fixed-width buckets.
type SeriesQuery struct {
	EquipmentType string
	EquipmentID   string
	Metric        string
	From, To      time.Time
	Interval      time.Duration
}

// Series returns the bucketed aggregates for a query, oldest first.
func (m *Mirror) Series(ctx context.Context, q SeriesQuery) ([]Bucket, error) {
	if err := m.Flush(); err != nil {
		return nil, err
	}
	if q.Interval <= 0 {
		q.Interval = time.Hour
	}

	select {
	case m.querySem <- struct{}{}:
		defer func() { <-m.querySem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	step := q.Interval.Milliseconds()
	rows, err := m.db.QueryContext(ctx, `
		SELECT (ts / ?) * ? AS bucket,
		       AVG(value), MIN(value), MAX(value), COUNT(*)
		FROM readings
		WHERE equipment_type = ? AND equipment_id = ? AND metric = ?
		  AND ts >= ? AND ts < ?
		GROUP BY bucket
		ORDER BY bucket
	`, step, step, q.EquipmentType, q.EquipmentID, q.Metric,
		q.From.UnixMilli(), q.To.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("series query: %w", err)
	}
	defer rows.Close()

	var out []Bucket
	for rows.Next() {
		var bucketMs int64
		var b Bucket
		if err := rows.Scan(&bucketMs, &b.Avg, &b.Min, &b.Max, &b.Count); err != nil {
			return nil, err
		}
		b.Ts = time.UnixMilli(bucketMs).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// MetricSummary is the per-metric rollup of a summary query.
type MetricSummary struct {
	Metric string  `json:"metric"`
	Avg    float64 `json:"avg"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int64   `json:"count"`
}

// Summary aggregates every metric of one equipment over a time range.
// Used for the monthly report rollup.
func (m *Mirror) Summary(ctx context.Context, equipmentType, equipmentID string, from, to time.Time) ([]MetricSummary, error) {
	if err := m.Flush(); err != nil {
		return nil, err
	}

	select {
	case m.querySem <- struct{}{}:
		defer func() { <-m.querySem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT metric, AVG(value), MIN(value), MAX(value), COUNT(*)
		FROM readings
		WHERE equipment_type = ? AND equipment_id = ?
		  AND ts >= ? AND ts < ?
		GROUP BY metric
		ORDER BY metric
	`, equipmentType, equipmentID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("summary query: %w", err)
	}
	defer rows.Close()

	var out []MetricSummary
	for rows.Next() {
		var s MetricSummary
		if err := rows.Scan(&s.Metric, &s.Avg, &s.Min, &s.Max, &s.Count); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// EquipmentRef identifies one mirrored equipment.
type EquipmentRef struct {
	EquipmentType string `json:"equipmentType"`
	EquipmentID   string `json:"equipmentId"`
	Site          string `json:"site"`
	Samples       int64  `json:"samples"`
}

// Equipment lists every equipment seen by the mirror with its sample count.
func (m *Mirror) Equipment(ctx context.Context) ([]EquipmentRef, error) {
	if err := m.Flush(); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT equipment_type, equipment_id, COALESCE(MAX(site), ''), COUNT(*)
		FROM readings
		GROUP BY equipment_type, equipment_id
		ORDER BY equipment_type, equipment_id
	`)
	if err != nil {
		return nil, fmt.Errorf("equipment query: %w", err)
	}
	defer rows.Close()

	var out []EquipmentRef
	for rows.Next() {
		var e EquipmentRef
		if err := rows.Scan(&e.EquipmentType, &e.EquipmentID, &e.Site, &e.Samples); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Metrics lists the distinct metric names recorded for one equipment.
func (m *Mirror) Metrics(ctx context.Context, equipmentType, equipmentID string) ([]string, error) {
	if err := m.Flush(); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT DISTINCT metric FROM readings
		WHERE equipment_type = ? AND equipment_id = ?
		ORDER BY metric
	`, equipmentType, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("metrics query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close flushes and closes the mirror.
func (m *Mirror) Close() error {
	m.mu.Lock()
	flushErr := m.flushLocked()
	m.mu.Unlock()
	closeErr := m.db.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// FromChillerLog maps a chiller log into mirror readings. Optional
// fields that were not recorded produce no reading.
func FromChillerLog(l *models.ChillerLog) []Reading {
	base := Reading{
		Ts:            l.CreatedAt,
		Site:          l.SiteID,
		EquipmentType: string(models.EquipmentChiller),
		EquipmentID:   l.EquipmentID,
	}
	out := make([]Reading, 0, 8)
	add := func(metric string, v float64) {
		r := base
		r.Metric = metric
		r.Value = v
		out = append(out, r)
	}
	addOpt := func(metric string, v *float64) {
		if v != nil {
			add(metric, *v)
		}
	}
	add("supply_temp", l.ChillerSupplyTemp)
	add("return_temp", l.ChillerReturnTemp)
	add("ct_supply_temp", l.CoolingTowerSupplyTemp)
	add("ct_return_temp", l.CoolingTowerReturnTemp)
	add("ct_differential_temp", l.CTDifferentialTemp)
	add("water_inlet_pressure", l.ChillerWaterInletPressure)
	addOpt("makeup_water_flow", l.ChillerMakeupWaterFlow)
	addOpt("avg_motor_current", l.AvgMotorCurrent)
	return out
}

// FromBoilerLog maps a boiler log into mirror readings.
func FromBoilerLog(l *models.BoilerLog) []Reading {
	base := Reading{
		Ts:            l.CreatedAt,
		Site:          l.SiteID,
		EquipmentType: string(models.EquipmentBoiler),
		EquipmentID:   l.EquipmentID,
	}
	out := make([]Reading, 0, 5)
	add := func(metric string, v float64) {
		r := base
		r.Metric = metric
		r.Value = v
		out = append(out, r)
	}
	add("feed_water_temp", l.FeedWaterTemp)
	add("oil_temp", l.OilTemp)
	add("steam_temp", l.SteamTemp)
	add("steam_pressure", l.SteamPressure)
	if l.SteamFlowLPH != nil {
		add("steam_flow_lph", *l.SteamFlowLPH)
	}
	return out
}

// FromCompressorLog maps a compressor log into mirror readings.
func FromCompressorLog(l *models.CompressorLog) []Reading {
	base := Reading{
		Ts:            l.CreatedAt,
		Site:          l.SiteID,
		EquipmentType: string(models.EquipmentCompressor),
		EquipmentID:   l.EquipmentID,
	}
	out := make([]Reading, 0, 4)
	add := func(metric string, v float64) {
		r := base
		r.Metric = metric
		r.Value = v
		out = append(out, r)
	}
	add("supply_temp", l.CompressorSupplyTemp)
	add("return_temp", l.CompressorReturnTemp)
	add("pressure", l.CompressorPressure)
	if l.CompressorFlow != nil {
		add("flow", *l.CompressorFlow)
	}
	return out
}

// FromUtilityLog maps a generic utility log into mirror readings.
func FromUtilityLog(l *models.UtilityLog) []Reading {
	base := Reading{
		Ts:            l.CreatedAt,
		Site:          l.SiteID,
		EquipmentType: string(l.EquipmentType),
		EquipmentID:   l.EquipmentID,
	}
	out := make([]Reading, 0, 5)
	add := func(metric string, v float64) {
		r := base
		r.Metric = metric
		r.Value = v
		out = append(out, r)
	}
	add("t1", l.T1)
	add("t2", l.T2)
	add("p1", l.P1)
	add("p2", l.P2)
	if l.FlowRate != nil {
		add("flow_rate", *l.FlowRate)
	}
	return out
}
