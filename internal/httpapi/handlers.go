package httpapi

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// loginRequest mirrors the OAuth2 password form; the grant and client fields
// are accepted and ignored.
type loginRequest struct {
	Username     string `json:"username" form:"username" validate:"required"`
	Password     string `json:"password" form:"password" validate:"required"`
	GrantType    string `json:"grant_type" form:"grant_type"`
	Scope        string `json:"scope" form:"scope"`
	ClientID     string `json:"client_id" form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token" validate:"required"`
}

type validateRequest struct {
	Token string `json:"token" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"redis_latency_ms"`
}

type Handler struct {
	engine Engine
}

func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, res.TokenPair)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	req, ok := refreshFromRequest(w, r)
	if !ok {
		return
	}

	pair, err := h.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, pair)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.BearerToken(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		middleware.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	req, ok := refreshFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.engine.Logout(r.Context(), access, req.RefreshToken); err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, messageResponse{Message: "Successfully logged out"})
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	payload, err := h.engine.Validate(r.Context(), req.Token)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	render.JSON(w, r, payload)
}

// Me returns the identity of the bearer token checked by Guard.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	render.JSON(w, r, sessionguard.PayloadFromClaims(claims))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	latency, err := h.engine.Ping(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, healthResponse{Status: "unavailable"})
		return
	}
	render.JSON(w, r, healthResponse{Status: "ok", LatencyMS: latency.Milliseconds()})
}

// refreshFromRequest reads refresh_token from the query string, falling back
// to a form or JSON body.
func refreshFromRequest(w http.ResponseWriter, r *http.Request) (refreshRequest, bool) {
	if token := r.URL.Query().Get("refresh_token"); token != "" {
		return refreshRequest{RefreshToken: token}, true
	}
	var req refreshRequest
	return req, decodeRequest(w, r, &req)
}

// decodeRequest binds a JSON or form body into v and validates it, writing a
// 422 on failure. An empty body is validated as the zero value.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength != 0 {
		if err := render.Decode(r, v); err != nil {
			middleware.WriteError(w, r, http.StatusUnprocessableEntity, "invalid request body")
			return false
		}
	}

	if err := validate.Struct(v); err != nil {
		middleware.WriteError(w, r, http.StatusUnprocessableEntity, validationDetail(err))
		return false
	}
	return true
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
