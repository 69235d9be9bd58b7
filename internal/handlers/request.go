package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ridebroker/backend/internal/apperrors"
	"github.com/ridebroker/backend/internal/middleware"
)

const maxBodyBytes = 1_048_576

// decodeJSON reads exactly one JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, err, "invalid request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperrors.New(apperrors.CodeValidation, "request body must only contain a single JSON object")
	}
	return nil
}

func requireDriver(r *http.Request) (string, error) {
	driverID, ok := middleware.DriverIDFromContext(r.Context())
	if !ok {
		return "", apperrors.New(apperrors.CodeUnauthorized, "driver identity missing")
	}
	return driverID, nil
}

func queryInt64(r *http.Request, name string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, apperrors.New(apperrors.CodeValidation, name+" must be a non-negative integer")
	}
	return v, nil
}
