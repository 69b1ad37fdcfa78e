package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Component field helpers for common component names
func Component(name string) Field {
	return String("component", name)
}

func Network(name string) Field {
	return String("network", name)
}

func Device(name string) Field {
	return String("device", name)
}

func Zone(name string) Field {
	return String("zone", name)
}

func Protocol(name string) Field {
	return String("protocol", name)
}

func Port(port int) Field {
	return Int("port", port)
}

func Peer(addr string) Field {
	return String("peer", addr)
}

func SessionID(id string) Field {
	return String("session_id", id)
}

func Listener(addr string) Field {
	return String("listener", addr)
}
