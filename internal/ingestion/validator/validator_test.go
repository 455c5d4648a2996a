package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/ingestion"
)

func TestValidateIngestRequest(t *testing.T) {
	items := func(n int, text string) []ingestion.ItemInput {
		out := make([]ingestion.ItemInput, n)
		for i := range out {
			out[i] = ingestion.ItemInput{ID: uint32(i), Text: text}
		}
		return out
	}

	tests := []struct {
		name   string
		req    ingestion.IngestRequest
		fields []string
	}{
		{"valid", ingestion.IngestRequest{Source: "files", Items: items(2, "a.go")}, nil},
		{"empty text allowed", ingestion.IngestRequest{Source: "files", Items: items(1, "")}, nil},
		{"blank source", ingestion.IngestRequest{Source: "  ", Items: items(1, "x")}, []string{"source"}},
		{"long source", ingestion.IngestRequest{Source: strings.Repeat("s", 129), Items: items(1, "x")}, []string{"source"}},
		{"no items", ingestion.IngestRequest{Source: "files"}, []string{"items"}},
		{"too many items", ingestion.IngestRequest{Source: "files", Items: items(10001, "x")}, []string{"items"}},
		{"long text", ingestion.IngestRequest{Source: "", Items: items(1, strings.Repeat("x", 4097))}, []string{"source", "items[0].text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIngestRequest(&tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}
