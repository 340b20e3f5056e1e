// Package metrics 定义训练流水线的 Prometheus 指标。
//
// 批任务没有 /metrics 端点，运行结束后通过 WriteTextfile 落盘，
// 由 node_exporter 的 textfile collector 采集。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry 是本进程独立的注册表，不污染 prometheus.DefaultRegisterer
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recpipe_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 1200},
		},
		[]string{"stage", "status"},
	)

	StageRows = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recpipe_stage_rows",
			Help: "Number of rows emitted by a pipeline stage",
		},
		[]string{"stage"},
	)

	RowsDropped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recpipe_rows_dropped_total",
			Help: "Rows dropped during preprocessing, by reason",
		},
		[]string{"reason"},
	)

	ExpanderMismatched = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "recpipe_expander_mismatched_rows",
			Help: "Source rows whose multi-valued user fields had unequal lengths",
		},
	)

	CFGridRMSE = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recpipe_cf_grid_rmse",
			Help: "Mean cross-validated RMSE per CF grid point",
		},
		[]string{"n_factors", "lr_all", "reg_all"},
	)

	CFBestRMSE = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "recpipe_cf_best_rmse",
			Help: "Mean cross-validated RMSE of the selected CF model",
		},
	)

	ArtifactBytes = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recpipe_artifact_bytes",
			Help: "Size of written artifacts in bytes",
		},
		[]string{"artifact"},
	)

	RemoteTransfers = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recpipe_remote_transfers_total",
			Help: "Remote object transfers by direction and result",
		},
		[]string{"direction", "result"},
	)

	PredictionFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recpipe_prediction_failures_total",
			Help: "Per-item prediction failures (unknown user or product)",
		},
		[]string{"model"},
	)
)

// RecordStage 记录阶段耗时与状态
func RecordStage(stage string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// RecordGridPoint 记录一个网格点的交叉验证 RMSE
func RecordGridPoint(nFactors int, lrAll, regAll, rmse float64) {
	CFGridRMSE.WithLabelValues(
		strconv.Itoa(nFactors),
		strconv.FormatFloat(lrAll, 'g', -1, 64),
		strconv.FormatFloat(regAll, 'g', -1, 64),
	).Set(rmse)
}

// RecordTransfer 记录一次远端对象传输
func RecordTransfer(direction string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	RemoteTransfers.WithLabelValues(direction, result).Inc()
}

// WriteTextfile 把当前注册表写成 textfile collector 格式
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
