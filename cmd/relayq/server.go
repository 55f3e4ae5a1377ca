package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"relayq/internal/constants"
	"relayq/internal/errors"
	"relayq/internal/middleware"
	"relayq/internal/models"
	"relayq/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server exposes the queue over a local admin HTTP API.
type Server struct {
	httpServer *http.Server
	queue      service.QueueService
	monitor    *service.ConnectivityMonitor
	logger     *errors.Logger
}

func NewServer(cfg *models.Config, queue service.QueueService, monitor *service.ConnectivityMonitor, logger *logrus.Logger) *Server {
	s := &Server{
		queue:   queue,
		monitor: monitor,
		logger:  errors.WrapLogger(logger),
	}

	router := mux.NewRouter()
	router.Use(middleware.Observability(logger))

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	router.HandleFunc("/queue", s.handleEnqueue).Methods(http.MethodPost)
	router.HandleFunc("/queue", s.handleGetQueue).Methods(http.MethodGet)
	router.HandleFunc("/queue/failed", s.handleGetFailed).Methods(http.MethodGet)
	router.HandleFunc("/queue/count", s.handleGetCount).Methods(http.MethodGet)
	router.HandleFunc("/queue/retry", s.handleRetryFailed).Methods(http.MethodPost)
	router.HandleFunc("/queue/sync", s.handleSync).Methods(http.MethodPost)
	router.HandleFunc("/queue/synced", s.handleClearSynced).Methods(http.MethodDelete)
	router.HandleFunc("/queue/{id}", s.handleRemove).Methods(http.MethodDelete)
	router.HandleFunc("/queue", s.handleClearQueue).Methods(http.MethodDelete)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	return s
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Logger.WithField("addr", s.httpServer.Addr).Info("Admin server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"online":  s.monitor.IsOnline(),
		"syncing": s.queue.IsSyncing(),
	})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var draft models.MessageDraft
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&draft); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	msg, err := s.queue.QueueMessage(r.Context(), &draft)
	if err != nil {
		if _, ok := err.(models.ValidationError); ok {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.serviceError(w, err, "Failed to queue message")
		return
	}

	s.writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.queue.GetQueue(r.Context())
	if err != nil {
		s.serviceError(w, err, "Failed to read queue")
		return
	}
	if msgs == nil {
		msgs = []*models.QueuedMessage{}
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleGetFailed(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.queue.GetFailedMessages(r.Context())
	if err != nil {
		s.serviceError(w, err, "Failed to read failed messages")
		return
	}
	if msgs == nil {
		msgs = []*models.QueuedMessage{}
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleGetCount(w http.ResponseWriter, r *http.Request) {
	var count int
	var err error

	if status := r.URL.Query().Get("status"); status != "" {
		count, err = s.queue.GetQueueCountByStatus(r.Context(), models.MessageStatus(status))
		if err != nil && errors.GetCode(err) == errors.ErrCodeInvalidInput {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	} else {
		count, err = s.queue.GetQueueCount(r.Context())
	}

	if err != nil {
		s.serviceError(w, err, "Failed to count queue")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	requeued, err := s.queue.RetryFailed(r.Context())
	if err != nil {
		s.serviceError(w, err, "Failed to requeue failed messages")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"requeued": requeued})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.queue.SyncQueue(r.Context())
	if err != nil {
		if err == service.ErrSyncInProgress {
			s.writeJSON(w, http.StatusConflict, map[string]string{"error": "sync already in progress"})
			return
		}
		s.serviceError(w, err, "Queue sync failed")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.queue.RemoveFromQueue(r.Context(), id); err != nil {
		if errors.GetCode(err) == errors.ErrCodeInvalidInput {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.serviceError(w, err, "Failed to remove message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearSynced(w http.ResponseWriter, r *http.Request) {
	removed, err := s.queue.ClearSyncedMessages(r.Context())
	if err != nil {
		s.serviceError(w, err, "Failed to clear synced messages")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	if err := s.queue.ClearQueue(r.Context()); err != nil {
		s.serviceError(w, err, "Failed to clear queue")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.LogError(err, "Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) serviceError(w http.ResponseWriter, err error, message string) {
	s.logger.LogError(err, message)
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": errors.GetUserMessage(err),
	})
}
