package sqlite

import (
	"database/sql"
	"encoding/json"
	"net/netip"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullToBool converts sql.NullInt64 to bool (0 = false, non-zero = true)
func nullToBool(ni sql.NullInt64) bool {
	return ni.Valid && ni.Int64 != 0
}

// nullToAddr parses a nullable address column; NULL is the zero address
func nullToAddr(ns sql.NullString) (netip.Addr, error) {
	if !ns.Valid || ns.String == "" {
		return netip.Addr{}, nil
	}
	return netip.ParseAddr(ns.String)
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// addrToNull stores the zero address as NULL
func addrToNull(a netip.Addr) sql.NullString {
	if !a.IsValid() || a.IsUnspecified() {
		return sql.NullString{}
	}
	return sql.NullString{String: a.String(), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target interface{}) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// unmarshalJSON decodes a NOT NULL JSON column
func unmarshalJSON(s string, target interface{}) error {
	return json.Unmarshal([]byte(s), target)
}

// marshalJSON encodes a value for a NOT NULL JSON column
func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// marshalToNull marshals interface to nullable JSON string
// Returns empty NullString for nil or empty maps
func marshalToNull(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}

	// Handle empty maps - don't store "{}"
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Address List Helpers
// ============================================================================

func addrStrings(addrs []netip.Addr) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func parseAddrList(s string) ([]netip.Addr, error) {
	var raw []string
	if err := unmarshalJSON(s, &raw); err != nil {
		return nil, err
	}
	out := make([]netip.Addr, 0, len(raw))
	for _, r := range raw {
		a, err := netip.ParseAddr(r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
