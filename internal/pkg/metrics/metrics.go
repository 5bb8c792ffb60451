package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsPublished 业务侧与 CDC 侧发布的变更事件
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keepsake_realtime_events_published_total",
		Help: "Change events published to the realtime bus.",
	}, []string{"table", "source"})

	// EventsDelivered 实际推送到 websocket 的事件
	EventsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keepsake_realtime_events_delivered_total",
		Help: "Change events written to websocket subscribers.",
	}, []string{"table"})

	// EventsDropped 解码失败或写失败而丢弃的事件
	EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keepsake_realtime_events_dropped_total",
		Help: "Change events dropped before delivery.",
	}, []string{"reason"})

	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keepsake_realtime_connections",
		Help: "Open realtime websocket connections.",
	})

	CDCConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keepsake_cdc_rows_consumed_total",
		Help: "Canal binlog rows converted into change events.",
	}, []string{"table", "type"})

	MediaCleaned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keepsake_media_pending_cleaned_total",
		Help: "Unconfirmed uploads removed by the cleanup job.",
	})

	goroutines = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "keepsake_goroutines",
		Help: "Number of goroutines.",
	}, func() float64 { return float64(runtime.NumGoroutine()) })
)

func init() {
	prometheus.MustRegister(
		EventsPublished,
		EventsDelivered,
		EventsDropped,
		WSConnections,
		CDCConsumed,
		MediaCleaned,
		goroutines,
	)
}
