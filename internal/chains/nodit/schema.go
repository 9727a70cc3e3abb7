// internal/chains/nodit/schema.go
package nodit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"custody-service/pkg/apperr"
)

const maxDecimals = 36

// Nodit has shipped the same payload both bare and wrapped over time.
// These are the only shapes accepted; anything else is a schema mismatch.
var (
	objectWrappers = []string{"result", "data"}
	listWrappers   = []string{"items", "data", "result", "tokens"}
)

func mismatch(op, format string, args ...interface{}) error {
	return apperr.Newf(apperr.CodeSchemaMismatch, op, format, args...)
}

// negotiateObject returns the object that carries field, either at the top
// level or one level down under a known wrapper.
func negotiateObject(op string, body []byte, field string) (map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, mismatch(op, "expected a JSON object: %v", err)
	}
	if _, ok := top[field]; ok {
		return top, nil
	}

	for _, key := range objectWrappers {
		raw, ok := top[key]
		if !ok {
			continue
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			continue
		}
		if _, ok := inner[field]; ok {
			return inner, nil
		}
	}
	return nil, mismatch(op, "field %q not found in response", field)
}

// negotiateList returns the element list, either a bare array or an array
// under a known wrapper key.
func negotiateList(op string, body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, mismatch(op, "malformed array: %v", err)
		}
		return list, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return nil, mismatch(op, "expected a JSON array or object: %v", err)
	}
	for _, key := range listWrappers {
		raw, ok := top[key]
		if !ok {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
	}
	return nil, mismatch(op, "no token list found in response")
}

// parseQuantity accepts a decimal string, a 0x hex string or a bare integer.
func parseQuantity(op string, raw json.RawMessage) (*big.Int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, mismatch(op, "balance is missing")
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return nil, mismatch(op, "balance is neither string nor number")
		}
		text = num.String()
	}

	text = strings.TrimSpace(text)
	value := new(big.Int)
	var ok bool
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		_, ok = value.SetString(text[2:], 16)
	} else {
		_, ok = value.SetString(text, 10)
	}
	if !ok || value.Sign() < 0 {
		return nil, mismatch(op, "balance %q is not a non-negative integer", text)
	}
	return value, nil
}

type contractFields struct {
	Address  string          `json:"address"`
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Decimals json.RawMessage `json:"decimals"`
}

// tokenEntry covers both the nested {contract:{...}, balance} layout and the
// flat {contractAddress, symbol, ...} layout.
type tokenEntry struct {
	Contract        *contractFields `json:"contract"`
	ContractAddress string          `json:"contractAddress"`
	Address         string          `json:"address"`
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	Decimals        json.RawMessage `json:"decimals"`
	Balance         json.RawMessage `json:"balance"`
}

func (e *tokenEntry) fields() contractFields {
	if e.Contract != nil {
		return *e.Contract
	}
	address := e.ContractAddress
	if address == "" {
		address = e.Address
	}
	return contractFields{Address: address, Symbol: e.Symbol, Name: e.Name, Decimals: e.Decimals}
}

func parseDecimals(op string, raw json.RawMessage) (int32, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, mismatch(op, "decimals missing")
	}
	var n int32
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, mismatch(op, "decimals %s is not an integer", string(raw))
		}
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
			return 0, mismatch(op, "decimals %q is not an integer", s)
		}
	}
	if n < 0 || n > maxDecimals {
		return 0, mismatch(op, "decimals %d out of range", n)
	}
	return n, nil
}
