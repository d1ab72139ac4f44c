package rediskey

import "fmt"

const (
	PinAttemptsPrefix = "pin:attempts"
	SequencePrefix    = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildPinAttemptsKey returns "pin:attempts:{creatorID}"
func BuildPinAttemptsKey(creatorID string) string {
	return NamespaceKey(PinAttemptsPrefix, creatorID)
}

// BuildDailySequenceKey returns "seq:{prefix}:{day}"
func BuildDailySequenceKey(prefix, day string) string {
	return NamespaceKey(SequencePrefix, fmt.Sprintf("%s:%s", prefix, day))
}
