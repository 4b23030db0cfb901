package message

import "github.com/arloliu/go-saxs/logger"

// LogFields returns the structured logging key-value pairs describing msg.
func LogFields(msg *Message) []any {
	kv := []any{
		"type", msg.Type.String(),
		"kind", msg.Kind().String(),
		"compression", msg.Compression.String(),
		"payload_len", len(msg.Raw),
	}

	if msg.Sample != nil {
		kv = append(kv, "sample_id", msg.Sample.ID(), "points", msg.Sample.Len())
	}
	if msg.FlowMetadata != nil {
		kv = append(kv, "flow_sample", msg.FlowMetadata.Sample())
	}

	return kv
}

// LogInfo logs msg at info level with the default logger, followed by extra key-value pairs.
func LogInfo(msg *Message, keysAndValues ...any) {
	logger.Info("message", append(LogFields(msg), keysAndValues...)...)
}

// LogDebug is LogInfo at debug level on the given logger.
func LogDebug(l logger.Logger, msg *Message, keysAndValues ...any) {
	if l.Level() > logger.DebugLevel {
		return
	}

	l.Debug("message", append(LogFields(msg), keysAndValues...)...)
}
