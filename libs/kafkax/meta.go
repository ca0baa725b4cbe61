package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderJobID   = "job_id"
	HeaderJobKind = "job_kind"
)

// JobMeta identifies the job carried by a Kafka message.
type JobMeta struct {
	JobID string
	Kind  string
}

// ExtractJobMeta falls back to the message key and topic when headers are missing.
func ExtractJobMeta(msg kafka.Message) JobMeta {
	id := HeaderValue(msg.Headers, HeaderJobID)
	kind := HeaderValue(msg.Headers, HeaderJobKind)
	if id == "" {
		id = string(msg.Key)
	}
	if kind == "" {
		kind = msg.Topic
	}
	return JobMeta{JobID: id, Kind: kind}
}

func JobHeaders(meta JobMeta) []kafka.Header {
	return []kafka.Header{
		{Key: HeaderJobID, Value: []byte(meta.JobID)},
		{Key: HeaderJobKind, Value: []byte(meta.Kind)},
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
