// Package validation rejects malformed search requests at the HTTP
// boundary, before they reach the aggregation engine.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// pincodeRe matches six-digit Indian postal codes.
var pincodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// SearchRequest is the inbound search contract.
type SearchRequest struct {
	Query   string
	Lat     float64
	Lng     float64
	Pincode string
}

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateSearchRequest checks the inbound contract: query of at least
// two characters, latitude in [-90,90], longitude in [-180,180], and an
// optional six-digit pincode.
func ValidateSearchRequest(r SearchRequest) error {
	if len(strings.TrimSpace(r.Query)) < 2 {
		return &ValidationError{Field: "query", Reason: "must be at least 2 characters"}
	}
	if r.Lat < -90 || r.Lat > 90 {
		return &ValidationError{Field: "lat", Reason: "must be between -90 and 90"}
	}
	if r.Lng < -180 || r.Lng > 180 {
		return &ValidationError{Field: "lng", Reason: "must be between -180 and 180"}
	}
	if r.Pincode != "" && !pincodeRe.MatchString(r.Pincode) {
		return &ValidationError{Field: "pincode", Reason: "must be a 6-digit postal code"}
	}
	return nil
}
