package routes

// routes/routes.go
// HTTP routing setup for the quiz ledger API endpoints.

import (
	"net/http"
	"time"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/collapsinghierarchy/quizledger/handler"
	"github.com/collapsinghierarchy/quizledger/ledger"
	"github.com/collapsinghierarchy/quizledger/metrics"
)

// VerifyPath stays writable after the ledger freezes.
const VerifyPath = "/verifyStateMachine"

// Deps are the collaborators SetupRoutes wires together. Metrics and
// Gatherer are optional; without a Gatherer no /metrics endpoint is mounted.
// The quiz endpoints are mounted only when Server has a service.
type Deps struct {
	Server   *handler.Server
	Ledger   *ledger.Ledger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

// SetupRoutes wires all HTTP endpoints behind the logging and freeze-gate
// middleware.
func SetupRoutes(d Deps) http.Handler {
	srv := d.Server
	mux := http.NewServeMux()

	// Submission ledger
	mux.HandleFunc("POST /start", srv.Start)
	mux.HandleFunc("POST /transition", srv.Transition)
	mux.HandleFunc("POST "+VerifyPath, srv.VerifyStateMachine)
	mux.HandleFunc("GET /queue", srv.Queue)
	mux.HandleFunc("GET /publicKey", srv.PublicKey)

	// Quiz administration
	if srv.HasQuiz() {
		mux.HandleFunc("POST /createadmin", srv.CreateAdmin)
		mux.HandleFunc("POST /adminlogin", srv.AdminLogin)
		mux.HandleFunc("POST /question", srv.CreateQuestion)
		mux.HandleFunc("POST /createstudent", srv.CreateStudent)
		mux.HandleFunc("POST /studentlogin", srv.StudentLogin)
		mux.HandleFunc("GET /decryptedQuestions", srv.DecryptedQuestions)
	}

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	return Wrap(d, mux)
}

// Wrap puts h behind the request logger and the freeze gate.
func Wrap(d Deps, h http.Handler) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	chain := alice.New(logRequest(d.Log), freezeGate(d.Ledger, d.Metrics))
	return chain.Then(h)
}

// freezeGate rejects every mutating request except signature verification
// once the ledger has frozen. It guards the whole API, not just the ledger
// endpoints.
func freezeGate(l *ledger.Ledger, m *metrics.Metrics) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.URL.Path != VerifyPath && l.Frozen() {
				if m != nil {
					m.FrozenRejections.Inc()
				}
				handler.WriteMessage(w, http.StatusForbidden, "State machine is frozen")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// logRequest logs method, path, status and latency of every request.
func logRequest(log *zap.Logger) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
