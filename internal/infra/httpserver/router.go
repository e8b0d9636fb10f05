package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appadvisor "github.com/dukhanin/contract-advisor/internal/application/advisor"
	appdocs "github.com/dukhanin/contract-advisor/internal/application/documents"
	domai "github.com/dukhanin/contract-advisor/internal/domain/ai"
	domdocs "github.com/dukhanin/contract-advisor/internal/domain/documents"
	domsession "github.com/dukhanin/contract-advisor/internal/domain/session"
	"github.com/dukhanin/contract-advisor/internal/middleware"
)

// DefaultUserID is assumed when the caller does not identify themselves.
const DefaultUserID = "default_user"

type Router struct {
	docsSvc    *appdocs.Service
	advisorSvc *appadvisor.Service
	checkers   map[string]middleware.HealthChecker
}

// Options tune the ambient middleware mounted by NewRouter.
type Options struct {
	AllowedOrigins []string
	RateCapacity   int
	RateRefill     int
	Checkers       map[string]middleware.HealthChecker
}

func NewRouter(docsSvc *appdocs.Service, advisorSvc *appadvisor.Service, opts Options) http.Handler {
	r := &Router{docsSvc: docsSvc, advisorSvc: advisorSvc, checkers: opts.Checkers}
	mux := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if opts.RateCapacity > 0 && opts.RateRefill > 0 {
		mux.Use(middleware.RateLimitMiddleware(opts.RateCapacity, opts.RateRefill))
	}

	mux.Get("/health", middleware.HealthHandler(r.checkers))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/chat", r.wrap(r.handleChat))
		rt.Post("/chat/qa", r.wrap(r.handleChatQA))
		rt.Post("/documents/upload", r.wrap(r.handleUpload))
		rt.Post("/document/analyze", r.wrap(r.handleAnalyze))
		rt.Post("/document/qa", r.wrap(r.handleQA))
		rt.Get("/document/analyses", r.wrap(r.handleAnalysisList))
		rt.Get("/recommendations", r.wrap(r.handleRecommendations))
		rt.Delete("/user/data", r.wrap(r.handleClear))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			http.Error(w, err.Error(), statusFor(err))
		}
	}
}

// statusFor maps domain errors onto HTTP statuses. Anything unrecognized is a
// plain 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, middleware.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domdocs.ErrUnsupportedFormat),
		errors.Is(err, domdocs.ErrCorruptInput),
		errors.Is(err, domdocs.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domdocs.ErrIndexNotBuilt),
		errors.Is(err, domsession.ErrInsufficientContext):
		return http.StatusConflict
	case errors.Is(err, domsession.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domai.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domai.ErrMalformedOutput):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// userID resolves the caller identity: authenticated user first, then the
// user_id query param, then the shared default.
func userID(req *http.Request) (string, error) {
	user := middleware.GetUserFromContext(req.Context())
	if user == "" {
		user = req.URL.Query().Get("user_id")
	}
	if user == "" {
		return DefaultUserID, nil
	}
	if err := middleware.ValidateUserID(user); err != nil {
		return "", err
	}
	return user, nil
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}

// POST /api/chat?user_id=
// Body: {"message": "..."}
func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) error {
	user, err := userID(req)
	if err != nil {
		return err
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return errors.Join(middleware.ErrValidation, err)
	}
	message := middleware.SanitizeString(body.Message)
	if err := middleware.ValidateQuestion(message); err != nil {
		return err
	}

	middleware.IncrementChatTurns()
	res, err := r.advisorSvc.ChatTurn(req.Context(), user, message)
	if err != nil {
		return err
	}
	return writeJSON(w, res)
}

// POST /api/chat/qa?user_id=
// Body: {"question": "..."}, answered against the session's uploaded documents.
func (r *Router) handleChatQA(w http.ResponseWriter, req *http.Request) error {
	user, err := userID(req)
	if err != nil {
		return err
	}
	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return errors.Join(middleware.ErrValidation, err)
	}
	question := middleware.SanitizeString(body.Question)
	if err := middleware.ValidateQuestion(question); err != nil {
		return err
	}

	answer, err := r.advisorSvc.Answer(req.Context(), user, question)
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"question": question, "answer": answer})
}

// POST /api/documents/upload?user_id= (multipart, field "files")
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	user, err := userID(req)
	if err != nil {
		return err
	}
	files, err := readUploads(req)
	if err != nil {
		return err
	}

	middleware.IncrementUploads()
	res, err := r.advisorSvc.UploadDocuments(req.Context(), user, files)
	if err != nil {
		return err
	}
	return writeJSON(w, res)
}

// POST /api/document/analyze?user_id= (multipart, single "file")
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	user, err := userID(req)
	if err != nil {
		return err
	}
	files, err := readUploads(req)
	if err != nil {
		return err
	}
	if len(files) != 1 {
		return errors.Join(middleware.ErrValidation, errors.New("exactly one file is required"))
	}
	f := files[0]

	middleware.IncrementAnalyses()
	res, err := r.docsSvc.AnalyzeUpload(req.Context(), user, f.Filename, f.ContentType, f.Payload)
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}
	return writeJSON(w, res)
}

// POST /api/document/qa?user_id= (multipart, single "file" + "questions" field
// holding a JSON array of strings)
func (r *Router) handleQA(w http.ResponseWriter, req *http.Request) error {
	if _, err := userID(req); err != nil {
		return err
	}
	files, err := readUploads(req)
	if err != nil {
		return err
	}
	if len(files) != 1 {
		return errors.Join(middleware.ErrValidation, errors.New("exactly one file is required"))
	}
	f := files[0]

	var questions []string
	rawQ := req.FormValue("questions")
	if rawQ == "" {
		return errors.Join(middleware.ErrValidation, errors.New("questions field is required"))
	}
	if err := json.Unmarshal([]byte(rawQ), &questions); err != nil {
		return errors.Join(middleware.ErrValidation, err)
	}
	if len(questions) == 0 {
		return errors.Join(middleware.ErrValidation, errors.New("at least one question is required"))
	}
	for i, q := range questions {
		questions[i] = middleware.SanitizeString(q)
		if err := middleware.ValidateQuestion(questions[i]); err != nil {
			return err
		}
	}

	items, err := r.docsSvc.QAUpload(req.Context(), f.Filename, f.ContentType, f.Payload, questions)
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]any{"answers": items})
}

// GET /api/document/analyses?user_id=&page=&page_size=
func (r *Router) handleAnalysisList(w http.ResponseWriter, req *http.Request) error {
	user, err := userID(req)
	if err != nil {
		return err
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.docsSvc.History(req.Context(), user, middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domdocs.AnalysisRecord{}
	}
	return writeJSON(w, list)
}

// GET /api/recommendations?user_id=
func (r *Router) handleRecommendations(w http.ResponseWriter, req *http.Request) error {
	user, err := userID(req)
	if err != nil {
		return err
	}
	rec, err := r.advisorSvc.Recommendation(req.Context(), user)
	if err != nil {
		return err
	}
	return writeJSON(w, rec)
}

// DELETE /api/user/data?user_id=
func (r *Router) handleClear(w http.ResponseWriter, req *http.Request) error {
	user, err := userID(req)
	if err != nil {
		return err
	}
	r.advisorSvc.Clear(req.Context(), user)
	return writeJSON(w, map[string]string{"status": "cleared", "user_id": user})
}

// readUploads pulls every validated file part out of a multipart request.
// Accepts both "files" (batch) and "file" (single) field names.
func readUploads(req *http.Request) ([]appadvisor.UploadFile, error) {
	if err := req.ParseMultipartForm(middleware.MaxUploadBytes); err != nil {
		return nil, errors.Join(middleware.ErrValidation, err)
	}
	if req.MultipartForm == nil {
		return nil, errors.Join(middleware.ErrValidation, errors.New("multipart form is required"))
	}

	headers := append(req.MultipartForm.File["files"], req.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		return nil, errors.Join(middleware.ErrValidation, errors.New("no files uploaded"))
	}

	var files []appadvisor.UploadFile
	for _, fh := range headers {
		if err := middleware.ValidateFilename(fh.Filename); err != nil {
			return nil, err
		}
		if err := middleware.ValidateFileSize(fh.Size); err != nil {
			return nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		payload, err := io.ReadAll(io.LimitReader(f, middleware.MaxUploadBytes+1))
		f.Close()
		if err != nil {
			return nil, err
		}
		if int64(len(payload)) > middleware.MaxUploadBytes {
			return nil, middleware.ValidateFileSize(int64(len(payload)))
		}
		files = append(files, appadvisor.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Payload:     payload,
		})
	}
	return files, nil
}
