// Package validator checks ingestion requests and reports per-field errors.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/ingestion"
)

const (
	maxSourceLength = 128
	maxTextLength   = 4096
	maxBatchSize    = 10000
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks the source name and the item batch. Empty
// texts are allowed; they match only the empty pattern.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	source := strings.TrimSpace(req.Source)
	switch {
	case source == "":
		errs["source"] = "source is required"
	case len(source) > maxSourceLength:
		errs["source"] = fmt.Sprintf("source must be at most %d characters", maxSourceLength)
	}

	switch {
	case len(req.Items) == 0:
		errs["items"] = "at least one item is required"
	case len(req.Items) > maxBatchSize:
		errs["items"] = fmt.Sprintf("at most %d items per request", maxBatchSize)
	}
	for i, item := range req.Items {
		if len(item.Text) > maxTextLength {
			errs[fmt.Sprintf("items[%d].text", i)] = fmt.Sprintf("text must be at most %d bytes", maxTextLength)
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
