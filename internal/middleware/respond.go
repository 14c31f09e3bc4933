package middleware

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/levelapp/funnel/internal/errors"
)

// writeError writes err in the API error envelope.
func writeError(w http.ResponseWriter, err *apperrors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	_ = json.NewEncoder(w).Encode(err.ToResponse())
}
