// Package api exposes the ingestion and chat workflows over JSON HTTP for
// multi-session hosts.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cropmind/cropmind/agent"
	"github.com/cropmind/cropmind/ingestion"
)

// ChatService runs one conversation turn against a session's state.
type ChatService interface {
	RunTurn(ctx context.Context, question string, state *agent.ConversationState) (string, error)
}

// Ingestor drives a full ingestion run over a source directory.
type Ingestor interface {
	Ingest(ctx context.Context, dir string) (*ingestion.Summary, error)
}

// Server exposes HTTP handlers for the core workflows. Conversation state
// lives in a per-session registry; the registry map is guarded by one mutex,
// and each session serializes its own turns so a state value is only ever
// owned by a single in-flight turn.
type Server struct {
	chat       ChatService
	ingestor   Ingestor
	clearIndex func(ctx context.Context) error
	dataDir    string
	logger     *log.Logger
	handler    http.Handler

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu    sync.Mutex
	state *agent.ConversationState
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type ingestRequest struct {
	Dir string `json:"dir"`
}

type ingestResponse struct {
	DocumentsLoaded int      `json:"documentsLoaded"`
	ChunksCreated   int      `json:"chunksCreated"`
	ChunksStored    int      `json:"chunksStored"`
	Errors          []string `json:"errors"`
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Question  string `json:"question"`
}

type chatResponse struct {
	SessionID string `json:"sessionId"`
	Answer    string `json:"answer"`
	Turns     int    `json:"turns"`
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

// New constructs a Server around an assembled chat service and ingestion
// pipeline. clearIndex may be nil when index clearing is not supported.
func New(chat ChatService, ingestor Ingestor, clearIndex func(ctx context.Context) error, dataDir string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		chat:       chat,
		ingestor:   ingestor,
		clearIndex: clearIndex,
		dataDir:    dataDir,
		logger:     logger,
		sessions:   make(map[string]*session),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/ingest", s.handleIngest)
	mux.HandleFunc("/v1/chat", s.handleChat)
	mux.HandleFunc("/v1/clear", s.handleClear)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = s.dataDir
	}

	summary, err := s.ingestor.Ingest(r.Context(), dir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("ingestion failed: %w", err))
		return
	}

	resp := ingestResponse{
		DocumentsLoaded: summary.DocumentsLoaded,
		ChunksCreated:   summary.ChunksCreated,
		ChunksStored:    summary.ChunksStored,
		Errors:          make([]string, 0, len(summary.Errors)),
	}
	for _, docErr := range summary.Errors {
		resp.Errors = append(resp.Errors, docErr.Error())
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("question cannot be empty"))
		return
	}

	sess, id := s.session(req.SessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	answer, err := s.chat.RunTurn(r.Context(), req.Question, sess.state)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Errorf("chat failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		SessionID: id,
		Answer:    answer,
		Turns:     sess.state.Turns,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if !req.Confirm {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("set confirm to true to clear the index"))
		return
	}
	if s.clearIndex == nil {
		s.writeError(w, http.StatusNotImplemented, fmt.Errorf("index clearing is not configured"))
		return
	}

	if err := s.clearIndex(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("clear failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "index cleared"})
}

func (s *Server) session(id string) (*session, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{state: agent.NewConversationState()}
		s.sessions[id] = sess
	}
	return sess, id
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("http error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func decodeJSON(r *http.Request, dst any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}
