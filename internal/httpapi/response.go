package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-session-agent/internal/authn"
	"go-session-agent/internal/model"
	"go-session-agent/internal/provider"
	"go-session-agent/pkg/autherror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var authErr *autherror.Error
	var provErr *provider.Error
	if errors.As(err, &authErr) {
		status = authErr.HTTPStatus
		body.Code = authErr.Code
		body.Message = authErr.Message
		body.Details = authErr.Details
	} else if errors.As(err, &provErr) {
		status = http.StatusBadGateway
		if provErr.Cause == provider.CauseInvalidGrant {
			status = http.StatusUnauthorized
		}
		body.Code = "PROVIDER_" + string(provErr.Cause)
		body.Message = provErr.Message
	} else if errors.Is(err, authn.ErrSuperseded) {
		status = http.StatusConflict
		body.Code = "SUPERSEDED"
		body.Message = "A newer operation replaced this one"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
