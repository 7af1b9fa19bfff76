package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

type Node struct {
	IPAddress string `json:"ip_address"`
	HostName  string `json:"host_name"`
}

type Application struct {
	Name     string `json:"name"`
	PID      int64  `json:"pid"`
	Language string `json:"language"`
}

// LandscapeRecord is the flattened topological position of one observed invocation.
type LandscapeRecord struct {
	LandscapeToken string      `json:"landscape_token"`
	Timestamp      int64       `json:"timestamp"` // epoch milliseconds
	Node           Node        `json:"node"`
	Application    Application `json:"application"`
	Package        string      `json:"package"`
	Class          string      `json:"class"`
	Method         string      `json:"method"`
}

// ID is stable for structurally equal records, so storing a redelivered record overwrites it.
// The JSON encoding quotes every string, so separators inside values cannot make two records collide.
func (r LandscapeRecord) ID() string {
	data, _ := json.Marshal(r)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
