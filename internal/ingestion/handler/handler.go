package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Concurrent-Fuzzy-Match-Engine/pkg/middleware"
)

const maxBodyBytes = 8 << 20

type Handler struct {
	publisher *publisher.Publisher
	logger    *slog.Logger
}

func New(pub *publisher.Publisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.IngestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		middleware.WriteError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid JSON body"))
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			middleware.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		middleware.WriteError(w, err)
		return
	}

	resp, err := h.publisher.Ingest(ctx, &req)
	if err != nil {
		log.Error("ingestion failed",
			"source", req.Source,
			"error", err,
			"status_code", apperrors.HTTPStatusCode(err),
		)
		middleware.WriteError(w, err)
		return
	}
	log.Info("items accepted",
		"source", resp.Source,
		"count", resp.Accepted,
		"mode", resp.Mode,
	)
	middleware.WriteJSON(w, http.StatusAccepted, resp)
}
