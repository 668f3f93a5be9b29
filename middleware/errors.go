package middleware

import (
	"net/http"

	"github.com/go-chi/render"
)

// ErrorBody is the JSON body of every error response written here.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// WriteError writes {"detail": detail} with status.
func WriteError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Detail: detail})
}
