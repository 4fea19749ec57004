package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/core/service"
	"github.com/rl1809/whiskey-cellar/internal/logger"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

const (
	msgNotFound     = "That whiskey no longer exists"
	msgNoSelection  = "Select a whiskey first"
	msgStoreFailure = "The cellar could not be updated, please try again"
)

type HTTPHandler struct {
	repo       service.Repository
	controller *service.ViewController
	page       *PageView
	logger     *zap.Logger
}

type WhiskeyHTTPRequest struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Age     jsonAge `json:"age"`
	Owned   bool    `json:"owned"`
}

type ErrorHTTPResponse struct {
	Error string `json:"error"`
}

// jsonAge accepts the age as a JSON number or string, so both go through
// the same form validation.
type jsonAge string

func (a *jsonAge) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = jsonAge(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*a = jsonAge(n.String())
	}
	return nil
}

func (r WhiskeyHTTPRequest) form() domain.Form {
	return domain.Form{
		Name:    r.Name,
		Country: r.Country,
		Age:     string(r.Age),
		Owned:   r.Owned,
	}
}

func NewHTTPHandler(repo service.Repository, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	page := NewPageView()
	return &HTTPHandler{
		repo:       repo,
		controller: service.NewViewController(repo, page, logger),
		page:       page,
		logger:     logger,
	}
}

// Routes mounts the page, the JSON API and the health check. metrics may be nil.
func (h *HTTPHandler) Routes(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, h.logRequests)

	r.Get("/", h.Index)
	r.Route("/form", func(r chi.Router) {
		r.Post("/add", h.FormAdd)
		r.Post("/select/{id}", h.FormSelect)
		r.Post("/update", h.FormUpdate)
		r.Post("/delete", h.FormDelete)
		r.Post("/reset", h.FormReset)
	})
	r.Route("/api/whiskeys", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
	r.Get("/health", h.HealthCheck)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

// logRequests hands the handlers a logger tagged with the request id.
func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := h.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
		r = r.WithContext(logger.NewContextWithLogger(r.Context(), log))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}

func (h *HTTPHandler) Index(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Load(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("Failed to load whiskeys", zap.Error(err))
		h.page.Alert(msgStoreFailure)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, h.page.take(h.controller.Selected())); err != nil {
		logger.FromContext(r.Context()).Error("Failed to render page", zap.Error(err))
	}
}

func formFromRequest(r *http.Request) domain.Form {
	return domain.Form{
		Name:    r.PostFormValue("name"),
		Country: r.PostFormValue("country"),
		Age:     r.PostFormValue("age"),
		Owned:   r.PostFormValue("owned") != "",
	}
}

func (h *HTTPHandler) FormAdd(w http.ResponseWriter, r *http.Request) {
	form := formFromRequest(r)
	h.formResult(w, r, form, h.controller.Submit(r.Context(), form))
}

func (h *HTTPHandler) FormSelect(w http.ResponseWriter, r *http.Request) {
	h.formResult(w, r, domain.Form{}, h.controller.Select(r.Context(), chi.URLParam(r, "id")))
}

func (h *HTTPHandler) FormUpdate(w http.ResponseWriter, r *http.Request) {
	form := formFromRequest(r)
	h.formResult(w, r, form, h.controller.Update(r.Context(), form))
}

func (h *HTTPHandler) FormDelete(w http.ResponseWriter, r *http.Request) {
	h.formResult(w, r, domain.Form{}, h.controller.Delete(r.Context()))
}

func (h *HTTPHandler) FormReset(w http.ResponseWriter, r *http.Request) {
	h.controller.Reset()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// formResult turns a controller error into an alert and sends the browser
// back to the page.
func (h *HTTPHandler) formResult(w http.ResponseWriter, r *http.Request, form domain.Form, err error) {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrValidationFailed):
		// the controller already alerted; keep what the user typed
		h.page.Fill(form)
	case errors.Is(err, domain.ErrNotFound):
		h.page.Alert(msgNotFound)
	case errors.Is(err, domain.ErrNoSelection):
		h.page.Alert(msgNoSelection)
	default:
		logger.FromContext(r.Context()).Error("Form action failed", zap.String("path", r.URL.Path), zap.Error(err))
		h.page.Fill(form)
		h.page.Alert(msgStoreFailure)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.GetAll(r.Context()).Wait(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	wh, err := h.repo.GetOne(r.Context(), chi.URLParam(r, "id")).Wait(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if wh == nil {
		h.writeError(w, r, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeFields(w, r)
	if !ok {
		return
	}
	created, err := h.repo.Create(r.Context(), fields).Wait(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/whiskeys/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.decodeFields(w, r)
	if !ok {
		return
	}
	updated, err := h.repo.Update(r.Context(), chi.URLParam(r, "id"), fields).Wait(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.repo.Delete(r.Context(), chi.URLParam(r, "id")).Wait(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) decodeFields(w http.ResponseWriter, r *http.Request) (domain.WhiskeyFields, bool) {
	var req WhiskeyHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request body"})
		return domain.WhiskeyFields{}, false
	}
	fields, err := req.form().Validate()
	if err != nil {
		h.writeError(w, r, err)
		return domain.WhiskeyFields{}, false
	}
	return fields, true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	message := http.StatusText(status)

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		message = verr.Message
	case status == http.StatusNotFound, status == http.StatusConflict:
		message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, ErrorHTTPResponse{Error: message})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidationFailed), errors.Is(err, port.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
