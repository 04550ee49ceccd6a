package rpc

import "encoding/json"

// MuxedRequest routes a query or transaction to a sub-app of the ledger's ABCI application.
type MuxedRequest struct {
	App  string          `json:"app"`
	Data json.RawMessage `json:"data"`
}
