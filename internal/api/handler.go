package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/domain/models"
	serviceErrors "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/errors/service"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/services/submission"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
)

type Handler struct {
	service *submission.Service
}

func NewHandler(service *submission.Service) *Handler {
	return &Handler{
		service: service,
	}
}

type submitOrderRequest struct {
	Type        string `json:"type"`
	TokenIn     string `json:"token_in"`
	TokenOut    string `json:"token_out"`
	Amount      string `json:"amount"`
	SlippageBps int32  `json:"slippage_bps"`
}

type submitOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type orderRecordResponse struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	TokenIn       string  `json:"token_in"`
	TokenOut      string  `json:"token_out"`
	Amount        string  `json:"amount"`
	SlippageBps   int32   `json:"slippage_bps"`
	Status        string  `json:"status"`
	Venue         *string `json:"venue"`
	ExecutedPrice *string `json:"executed_price"`
	TxRef         *string `json:"tx_ref"`
	FailureReason *string `json:"failure_reason"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func (h *Handler) SubmitOrder(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	var body submitOrderRequest
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		respondError(writer, http.StatusBadRequest, "invalid json body")
		return
	}

	if body.Type == "" {
		body.Type = string(models.OrderTypeMarket)
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		respondError(writer, http.StatusBadRequest, "amount must be a decimal string")
		return
	}

	order, err := h.service.SubmitOrder(ctx, submission.SubmitParams{
		Type:        models.OrderType(body.Type),
		TokenIn:     body.TokenIn,
		TokenOut:    body.TokenOut,
		Amount:      amount,
		SlippageBps: body.SlippageBps,
	})
	if err != nil {
		switch {
		case errors.Is(err, serviceErrors.ErrInvalidOrder):
			respondError(writer, http.StatusBadRequest, err.Error())
		case errors.Is(err, serviceErrors.ErrOrderAlreadyExists):
			respondError(writer, http.StatusConflict, "order already exists")
		default:
			logger.Error(ctx, "order submission failed", zap.Error(err))
			respondError(writer, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	respondJSON(writer, http.StatusAccepted, submitOrderResponse{
		OrderID: order.ID.String(),
		Status:  string(models.OrderStatusPending),
	})
}

func (h *Handler) GetOrder(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	orderID, err := uuid.Parse(request.PathValue("id"))
	if err != nil {
		respondError(writer, http.StatusBadRequest, "order id must be a uuid")
		return
	}

	record, err := h.service.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, serviceErrors.ErrOrderNotFound) {
			respondError(writer, http.StatusNotFound, "order not found")
			return
		}

		logger.Error(ctx, "order read failed", zap.Error(err))
		respondError(writer, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(writer, http.StatusOK, recordToResponse(record))
}

func recordToResponse(record models.OrderRecord) orderRecordResponse {
	response := orderRecordResponse{
		ID:            record.ID.String(),
		Type:          string(record.Type),
		TokenIn:       record.TokenIn,
		TokenOut:      record.TokenOut,
		Amount:        record.Amount.String(),
		SlippageBps:   record.SlippageBps,
		Status:        string(record.Status),
		TxRef:         record.TxRef,
		FailureReason: record.FailureReason,
		CreatedAt:     record.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:     record.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	if record.Venue != nil {
		venue := string(*record.Venue)
		response.Venue = &venue
	}
	if record.ExecutedPrice != nil {
		price := record.ExecutedPrice.String()
		response.ExecutedPrice = &price
	}

	return response
}

func respondJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}

func respondError(writer http.ResponseWriter, status int, message string) {
	respondJSON(writer, status, map[string]string{"error": message})
}
