package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "hallpass_message_duration_sec",
	Help: "Total duration of gate message processing",
})

var messageProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hallpass_messages_processed",
	Help: "Number of messages processed, by decision reason",
}, []string{"reason"})

var messageErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "hallpass_message_errors",
	Help: "Number of messages which failed processing",
})

var flaggedTagCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hallpass_flagged_tags",
	Help: "Number of rule flags raised, by category",
}, []string{"category"})

var autoBlockCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "hallpass_auto_blocks",
	Help: "Number of automatic blocks issued",
})

var blockExpireCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "hallpass_block_expirations",
	Help: "Number of lazily expired blocks",
})

var notifySendCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hallpass_notifications",
	Help: "Number of ops notifications, by outcome",
}, []string{"status"})
