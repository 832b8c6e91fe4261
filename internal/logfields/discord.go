package logfields

import "go.uber.org/zap"

// MessageIndex is the position of a message in the sequence sent for one
// event, starting at 1.
func MessageIndex(val int) zap.Field {
	return zap.Int("discord.message_index", val)
}

func MessageCount(val int) zap.Field {
	return zap.Int("discord.message_count", val)
}
