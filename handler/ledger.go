package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/collapsinghierarchy/quizledger/ledger"
	"github.com/collapsinghierarchy/quizledger/model"
	"github.com/collapsinghierarchy/quizledger/pkc/sign"
)

const (
	msgStarted          = "State machine started"
	msgAlreadyStarted   = "State machine already started"
	msgNotStarted       = "State machine not started"
	msgRecorded         = "Response recorded"
	msgFrozenTransition = "State machine is frozen. Cannot transition."
	msgTransitionFields = "studentId, questionId, and response are required"
	msgVerifyFields     = "studentId, questionId, response, timestamp, and signature are required"
	msgInvalidPublicKey = "publicKey must be base64"
	msgInvalidJSON      = "invalid JSON body"
	msgInvalidUTF8      = "studentId, questionId, and response must be valid UTF-8"
	msgResponseType     = "response must be a string or number"
)

var errResponseType = errors.New(msgResponseType)

// responseText is a submission response. Clients may send a JSON string or
// a JSON number; numbers are kept as their literal text, so 0 becomes "0".
type responseText string

func (t *responseText) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = responseText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errResponseType
	}
	*t = responseText(n.String())
	return nil
}

type transitionRequest struct {
	StudentID  string       `json:"studentId"`
	QuestionID string       `json:"questionId"`
	Response   responseText `json:"response"`
}

type transitionResponse struct {
	Message    string `json:"message"`
	StudentID  string `json:"studentId"`
	QuestionID string `json:"questionId"`
	Response   string `json:"response"`
	Timestamp  int64  `json:"timestamp"`
	Signature  string `json:"signature"`
}

type verifyRequest struct {
	StudentID  string       `json:"studentId"`
	QuestionID string       `json:"questionId"`
	Response   responseText `json:"response"`
	Timestamp  *int64       `json:"timestamp"`
	Signature  string       `json:"signature"`
	// PublicKey is optional; the process key is used when it is empty.
	PublicKey string `json:"publicKey"`
}

type verifyResponse struct {
	IsValid    bool   `json:"isValid"`
	StudentID  string `json:"studentId"`
	QuestionID string `json:"questionId"`
	Response   string `json:"response"`
}

// queueRecord is the wire form of a ledger event. Started events carry only
// state and timestamp.
type queueRecord struct {
	State      string `json:"state,omitempty"`
	StudentID  string `json:"studentId,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
	Response   string `json:"response,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	Signature  string `json:"signature,omitempty"`
}

type publicKeyResponse struct {
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"publicKey"`
}

// Start handles POST /start.
func (s *Server) Start(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ledger.Start(); err != nil {
		if errors.Is(err, ledger.ErrAlreadyStarted) {
			WriteMessage(w, http.StatusBadRequest, msgAlreadyStarted)
			return
		}
		s.internalError(w, r, "Failed to start state machine", err)
		return
	}
	WriteMessage(w, http.StatusOK, msgStarted)
}

// Transition handles POST /transition.
func (s *Server) Transition(w http.ResponseWriter, r *http.Request) {
	if s.ledger.Frozen() {
		WriteMessage(w, http.StatusForbidden, msgFrozenTransition)
		return
	}
	var req transitionRequest
	if err := readJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		badBody(w, err)
		return
	}
	ev, err := s.ledger.Append(req.StudentID, req.QuestionID, string(req.Response))
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrFrozen):
		WriteMessage(w, http.StatusForbidden, msgFrozenTransition)
		return
	case errors.Is(err, ledger.ErrMissingField):
		WriteMessage(w, http.StatusBadRequest, msgTransitionFields)
		return
	case errors.Is(err, ledger.ErrInvalidField):
		WriteMessage(w, http.StatusBadRequest, msgInvalidUTF8)
		return
	case errors.Is(err, ledger.ErrNotStarted):
		WriteMessage(w, http.StatusBadRequest, msgNotStarted)
		return
	default:
		s.internalError(w, r, "Failed to record response", err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{
		Message:    msgRecorded,
		StudentID:  ev.StudentID,
		QuestionID: ev.QuestionID,
		Response:   ev.Response,
		Timestamp:  ev.Millis(),
		Signature:  base64.StdEncoding.EncodeToString(ev.Signature),
	})
}

// VerifyStateMachine handles POST /verifyStateMachine. It never touches
// ledger state.
func (s *Server) VerifyStateMachine(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := readJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		badBody(w, err)
		return
	}
	if req.StudentID == "" || req.QuestionID == "" || req.Response == "" ||
		req.Timestamp == nil || req.Signature == "" {
		WriteMessage(w, http.StatusBadRequest, msgVerifyFields)
		return
	}

	pub := s.signer.PublicKey()
	if req.PublicKey != "" {
		var err error
		if pub, err = base64.StdEncoding.DecodeString(req.PublicKey); err != nil {
			WriteMessage(w, http.StatusBadRequest, msgInvalidPublicKey)
			return
		}
	}

	// An undecodable signature is simply not valid.
	valid := false
	if sig, err := base64.StdEncoding.DecodeString(req.Signature); err == nil {
		payload := sign.Canonical(req.StudentID, req.QuestionID, string(req.Response), *req.Timestamp)
		valid = sign.Verify(payload, sig, pub)
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		IsValid:    valid,
		StudentID:  req.StudentID,
		QuestionID: req.QuestionID,
		Response:   string(req.Response),
	})
}

// Queue handles GET /queue.
func (s *Server) Queue(w http.ResponseWriter, r *http.Request) {
	events := s.ledger.Snapshot()
	out := make([]queueRecord, 0, len(events))
	for _, ev := range events {
		out = append(out, toRecord(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

// PublicKey handles GET /publicKey so verifiers outside the process can
// check signatures.
func (s *Server) PublicKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, publicKeyResponse{
		Algorithm: sign.Algorithm,
		PublicKey: base64.StdEncoding.EncodeToString(s.signer.PublicKey()),
	})
}

func badBody(w http.ResponseWriter, err error) {
	if errors.Is(err, errResponseType) {
		WriteMessage(w, http.StatusBadRequest, msgResponseType)
		return
	}
	WriteMessage(w, http.StatusBadRequest, msgInvalidJSON)
}

func toRecord(ev model.Event) queueRecord {
	if ev.Kind == model.KindStarted {
		return queueRecord{State: string(model.KindStarted), Timestamp: ev.Millis()}
	}
	return queueRecord{
		StudentID:  ev.StudentID,
		QuestionID: ev.QuestionID,
		Response:   ev.Response,
		Timestamp:  ev.Millis(),
		Signature:  base64.StdEncoding.EncodeToString(ev.Signature),
	}
}
