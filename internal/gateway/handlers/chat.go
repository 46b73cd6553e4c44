package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chaicafe/modelgate/internal/gateway/governance"
	"github.com/chaicafe/modelgate/internal/gateway/providers"
	"github.com/chaicafe/modelgate/internal/shared/models"
)

// Governor is the request pipeline the handlers drive.
type Governor interface {
	Complete(ctx context.Context, req governance.TurnRequest) (*governance.TurnResult, error)
	SetUserModel(ctx context.Context, userID, model string) error
	UserModel(ctx context.Context, userID string) (governance.Resolution, error)
	TierModels(ctx context.Context, tierName string) ([]models.Model, error)
}

type ChatHandler struct {
	governor Governor
}

func NewChatHandler(governor Governor) *ChatHandler {
	return &ChatHandler{governor: governor}
}

// CompletionRequest is the body of POST /completions.
type CompletionRequest struct {
	UserID            string              `json:"user_id"`
	Model             string              `json:"model,omitempty"`
	Prompt            string              `json:"prompt"`
	SystemInstruction string              `json:"system_instruction"`
	Description       string              `json:"description,omitempty"`
	Personality       string              `json:"personality,omitempty"`
	Scenario          string              `json:"scenario,omitempty"`
	ExampleExchange   string              `json:"example_exchange,omitempty"`
	History           []providers.Message `json:"history,omitempty"`
}

// CompletionResponse is the body of POST /completions.
type CompletionResponse struct {
	Content      string        `json:"content,omitempty"`
	Usage        *models.Usage `json:"usage,omitempty"`
	DeniedReason string        `json:"denied_reason,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleCompletion handles POST /completions
func (h *ChatHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	var req CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.UserID == "" || req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id and prompt are required"})
		return
	}

	result, err := h.governor.Complete(r.Context(), governance.TurnRequest{
		UserID: req.UserID,
		Model:  req.Model,
		Prompt: req.Prompt,
		System: providers.SystemContext{
			Instruction:     req.SystemInstruction,
			Description:     req.Description,
			Personality:     req.Personality,
			Scenario:        req.Scenario,
			ExampleExchange: req.ExampleExchange,
		},
		History: req.History,
	})
	if err != nil {
		if errors.Is(err, providers.ErrUnroutableModel) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	if result.DeniedReason != "" {
		writeJSON(w, http.StatusTooManyRequests, CompletionResponse{DeniedReason: result.DeniedReason})
		return
	}

	writeJSON(w, http.StatusOK, CompletionResponse{
		Content: result.Content,
		Usage:   &result.Usage,
	})
}

// selectionRequest is the body of PUT /users/{userID}/model.
type selectionRequest struct {
	Model string `json:"model"`
}

// selectionResponse describes a user's effective resolution.
type selectionResponse struct {
	Tier  string `json:"tier"`
	Model string `json:"model,omitempty"`
}

// HandleSetModel handles PUT /users/{userID}/model
func (h *ChatHandler) HandleSetModel(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Model == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "model is required"})
		return
	}

	if err := h.governor.SetUserModel(r.Context(), userID, req.Model); err != nil {
		if errors.Is(err, governance.ErrNotEntitled) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, selectionResponse{Model: req.Model})
}

// HandleGetModel handles GET /users/{userID}/model
func (h *ChatHandler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	res, err := h.governor.UserModel(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, selectionResponse{Tier: res.Tier, Model: res.Model})
}

// HandleListModels handles GET /models?tier=
func (h *ChatHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	tier := r.URL.Query().Get("tier")
	if tier == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tier query parameter is required"})
		return
	}

	list, err := h.governor.TierModels(r.Context(), tier)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string][]models.Model{"models": list})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
