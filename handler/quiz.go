package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/collapsinghierarchy/quizledger/service"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type questionRequest struct {
	AdminID       string `json:"adminId"`
	Question      string `json:"question"`
	Option1       string `json:"option1"`
	Option2       string `json:"option2"`
	Option3       string `json:"option3"`
	Option4       string `json:"option4"`
	CorrectOption string `json:"correctOption"`
}

type decryptedQuestion struct {
	QuestionID string `json:"questionId"`
	Question   string `json:"question"`
	Option1    string `json:"option1"`
	Option2    string `json:"option2"`
	Option3    string `json:"option3"`
	Option4    string `json:"option4"`
}

// CreateAdmin handles POST /createadmin.
func (s *Server) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a, err := s.svc.CreateAdmin(r.Context(), req.Username, req.Password)
	if err != nil {
		s.credentialError(w, r, "Failed to create admin", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"adminId": a.ID.String(), "username": a.Username})
}

// AdminLogin handles POST /adminlogin.
func (s *Server) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := s.svc.AdminLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		s.loginError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"adminId": id.String()})
}

// CreateStudent handles POST /createstudent.
func (s *Server) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	st, err := s.svc.CreateStudent(r.Context(), req.Username, req.Password)
	if err != nil {
		s.credentialError(w, r, "Failed to create student", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"studentId": st.ID.String()})
}

// StudentLogin handles POST /studentlogin.
func (s *Server) StudentLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := s.svc.StudentLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		s.loginError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"studentid": id.String()})
}

// CreateQuestion handles POST /question.
func (s *Server) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AdminID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	adminID, err := uuid.Parse(req.AdminID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	q, a, err := s.svc.CreateQuestion(r.Context(), service.NewQuestion{
		AdminID:       adminID,
		Question:      req.Question,
		Options:       [4]string{req.Option1, req.Option2, req.Option3, req.Option4},
		CorrectOption: req.CorrectOption,
	})
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnknownAdmin):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	case errors.Is(err, service.ErrIncompleteQuestion):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrQuestionLimit):
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("An admin can only post up to %d questions.", s.svc.MaxQuestions()))
		return
	default:
		s.internalError(w, r, "Failed to create question", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"questionId": q.ID.String(),
		"answerId":   a.ID.String(),
	})
}

// DecryptedQuestions handles GET /decryptedQuestions.
func (s *Server) DecryptedQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := s.svc.ReleasedQuestions(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNotReleased):
		writeError(w, http.StatusTooEarly, "Questions are not released until "+
			s.svc.ReleaseAt().UTC().Format(time.RFC3339))
		return
	case errors.Is(err, service.ErrNoQuestions):
		writeError(w, http.StatusNotFound, "No questions found")
		return
	default:
		s.internalError(w, r, "Failed to fetch and decrypt questions", err)
		return
	}
	out := make([]decryptedQuestion, 0, len(qs))
	for _, q := range qs {
		out = append(out, decryptedQuestion{
			QuestionID: q.ID.String(),
			Question:   q.Question,
			Option1:    q.Options[0],
			Option2:    q.Options[1],
			Option3:    q.Options[2],
			Option4:    q.Options[3],
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) credentialError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, "password is too long")
	case errors.Is(err, service.ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.internalError(w, r, msg, err)
	}
}

func (s *Server) loginError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	s.internalError(w, r, "Failed to login", err)
}
