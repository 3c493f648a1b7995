package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/collapsinghierarchy/quizledger/ledger"
	"github.com/collapsinghierarchy/quizledger/pkc/sign"
	"github.com/collapsinghierarchy/quizledger/service"
)

// maxBody bounds every JSON request body.
const maxBody = 64 * 1024

type Server struct {
	ledger *ledger.Ledger
	signer *sign.Signer
	svc    *service.Service
	log    *zap.Logger
}

// New returns a ready Server instance. svc may be nil; the quiz handlers
// are then unavailable and HasQuiz reports false.
func New(l *ledger.Ledger, signer *sign.Signer, svc *service.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{ledger: l, signer: signer, svc: svc, log: log}
}

// HasQuiz reports whether the quiz administration handlers can be mounted.
func (s *Server) HasQuiz() bool { return s.svc != nil }

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes {"message": msg}, the body shape of the ledger endpoints.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// internalError logs err and answers with a generic body; details never
// reach the caller.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.log.Error(msg,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	writeError(w, http.StatusInternalServerError, msg)
}

var errEmptyBody = errors.New("request body is empty")

// readJSON decodes a bounded request body into dst.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}
