package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jetstream-aero/embedq/common"
	"github.com/jetstream-aero/embedq/services"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Router struct {
	processorService *services.ProcessorService
	queueService     *services.QueueService
	authSecret       string
	metricsEnabled   bool
}

func NewRouter(processorService *services.ProcessorService, queueService *services.QueueService, authSecret string, metricsEnabled bool) *Router {
	return &Router{
		processorService: processorService,
		queueService:     queueService,
		authSecret:       authSecret,
		metricsEnabled:   metricsEnabled,
	}
}

func (er *Router) NewRouter() *chi.Mux {
	router := chi.NewRouter()

	router.Get("/healthcheck", er.healthcheck)
	if er.metricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyTokenAuth(er.authSecret))

		r.Route("/queue", func(r chi.Router) {
			r.Post("/process", er.triggerProcessing)
			r.Post("/items", er.enqueueItem)
			r.Get("/stats", er.queueStats)
		})
	})

	return router
}

func (er *Router) triggerProcessing(w http.ResponseWriter, req *http.Request) {
	var trigger common.TriggerRequest
	err := json.NewDecoder(req.Body).Decode(&trigger)
	if err != nil && !errors.Is(err, io.EOF) {
		// an empty body is a valid manual trigger with all defaults
		log.Error().Err(err).Msg("failed to decode trigger request body")
		er.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBody)
		return
	}
	if trigger.BatchSize < 0 {
		er.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBatchSize)
		return
	}

	report, err := er.processorService.ProcessBatch(trigger, req.Context())
	if err != nil {
		er.sendResponseFromError(w, err)
		return
	}
	if report == nil {
		er.sendJsonResponse(w, http.StatusOK, common.EmptyQueueResponse{
			Message:        common.NoEligibleItemsMessage,
			ItemsProcessed: 0,
		})
		return
	}
	er.sendJsonResponse(w, http.StatusOK, report)
}

func (er *Router) enqueueItem(w http.ResponseWriter, req *http.Request) {
	var newItem common.NewItemRequest
	err := json.NewDecoder(req.Body).Decode(&newItem)
	if err != nil {
		log.Error().Err(err).Msg("failed to decode enqueue request body")
		er.sendErrorResponse(w, http.StatusBadRequest, common.ErrCodeBadRequestInvalidBody)
		return
	}

	itemId, err := er.queueService.EnqueueItem(newItem, req.Context())
	if err != nil {
		er.sendResponseFromError(w, err)
		return
	}
	er.sendJsonResponse(w, http.StatusCreated, common.NewItemResponse{Id: itemId})
}

func (er *Router) queueStats(w http.ResponseWriter, req *http.Request) {
	stats, err := er.queueService.GetQueueStats(req.Context())
	if err != nil {
		er.sendResponseFromError(w, err)
		return
	}
	er.sendJsonResponse(w, http.StatusOK, stats)
}

func (er *Router) healthcheck(w http.ResponseWriter, req *http.Request) {
	er.sendNoContentEmptyResponse(w)
}

func (er *Router) sendNoContentEmptyResponse(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func (er *Router) sendJsonResponse(w http.ResponseWriter, httpCode int, payload interface{}) {
	respBody, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("error marshaling response body")
		er.sendErrorResponse(w, http.StatusInternalServerError, common.ErrCodeInternal)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	w.Write(respBody)
}

func (er *Router) sendErrorResponse(w http.ResponseWriter, httpCode int, errCode string) {
	er.sendJsonResponse(w, httpCode, common.ErrorResponse{Code: errCode})
}

func (er *Router) sendResponseFromError(w http.ResponseWriter, err error) {
	var ee common.EmbedqError
	if !errors.As(err, &ee) {
		er.sendErrorResponse(w, http.StatusInternalServerError, common.ErrCodeInternal)
		return
	}

	switch {
	case strings.HasPrefix(ee.Code, "bad_request"):
		er.sendErrorResponse(w, http.StatusBadRequest, ee.Code)
	case ee.Code == common.ErrCodeNotFoundItem:
		er.sendErrorResponse(w, http.StatusNotFound, ee.Code)
	default:
		er.sendErrorResponse(w, http.StatusInternalServerError, ee.Code)
	}
}
