/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package broker

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	connections prometheus.Gauge
	registered  prometheus.Gauge
	pairs       prometheus.Gauge
	frames      *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	reaped      prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bellpath",
			Subsystem: "broker",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bellpath",
			Subsystem: "broker",
			Name:      "registered_peers",
			Help:      "Identities currently registered.",
		}),
		pairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bellpath",
			Subsystem: "broker",
			Name:      "pairs",
			Help:      "Peer pairs currently relaying.",
		}),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bellpath",
				Subsystem: "broker",
				Name:      "frames_total",
				Help:      "Frames received, by op.",
			},
			[]string{"op"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bellpath",
				Subsystem: "broker",
				Name:      "rejections_total",
				Help:      "Error frames sent, by code.",
			},
			[]string{"code"},
		),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bellpath",
			Subsystem: "broker",
			Name:      "reaped_total",
			Help:      "Idle connections closed by the reaper.",
		}),
	}

	reg.MustRegister(m.connections, m.registered, m.pairs, m.frames, m.rejections, m.reaped)

	return m
}
