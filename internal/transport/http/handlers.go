package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ecomarket/purchase-pipeline/internal/catalog"
	"github.com/ecomarket/purchase-pipeline/internal/dispatcher"
	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/metrics"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
	"github.com/ecomarket/purchase-pipeline/internal/strategy"
)

type handler struct {
	log         *slog.Logger
	metrics     *metrics.Purchase
	dispatch    *dispatcher.Dispatcher
	registry    *health.Registry
	inventory   *catalog.Store
	testHarness retryTestHarness
}

func newHandler(log *slog.Logger, m *metrics.Purchase, dispatch *dispatcher.Dispatcher, registry *health.Registry, inventory *catalog.Store) *handler {
	return &handler{
		log:       log,
		metrics:   m,
		dispatch:  dispatch,
		registry:  registry,
		inventory: inventory,
		testHarness: retryTestHarness{
			simple:    dispatch.Strategies[purchase.ReintentosSimples],
			backoff:   dispatch.Strategies[purchase.BackoffExponencial],
			scheduled: dispatch.Strategies[purchase.ReintentosSofisticados],
		},
	}
}

func (h *handler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/compras", h.handleCompra)

	mux.HandleFunc("POST /api/simular-fallo", h.handleSimularFallo)
	mux.HandleFunc("POST /api/reset-conexiones", h.handleResetConexiones)
	mux.HandleFunc("POST /api/desactivar-todo", h.handleDesactivarTodo)
	mux.HandleFunc("POST /api/activar-todo", h.handleActivarTodo)
	mux.HandleFunc("GET /api/estado-conexiones", h.handleEstadoConexiones)
	mux.HandleFunc("POST /api/test-connection-retry", h.handleTestConnectionRetry)

	mux.HandleFunc("GET /api/productos", h.handleListProducts)
	mux.HandleFunc("POST /api/productos", h.handleCreateProduct)
	mux.HandleFunc("GET /api/productos/{id}", h.handleGetProduct)
	mux.HandleFunc("PUT /api/productos/{id}", h.handleUpdateProduct)
	mux.HandleFunc("DELETE /api/productos/{id}", h.handleDeleteProduct)

	mux.HandleFunc("GET /api/estadisticas", h.handleEstadisticas)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// --- purchase endpoint ---

type compraRequest struct {
	ProductID int                  `json:"product_id"`
	Cantidad  int                  `json:"cantidad"`
	Modo      purchase.StrategyTag `json:"modo"`
}

type compraResponse struct {
	CorrelationID     string               `json:"correlation_id"`
	Mensaje           string               `json:"mensaje"`
	ProductoID        int                  `json:"producto_id"`
	ProductoNombre    string               `json:"producto_nombre"`
	CantidadComprada  int                  `json:"cantidad_comprada"`
	StockRestante     int                  `json:"stock_restante"`
	TotalPagado       float64              `json:"total_pagado"`
	Disponible        bool                 `json:"disponible"`
	ModoProcesamiento purchase.StrategyTag `json:"modo_procesamiento"`
	Procesamiento     string               `json:"procesamiento"`
	Detalles          string               `json:"detalles,omitempty"`

	IntentoExitoso *int   `json:"intento_exitoso,omitempty"`
	TiempoTotal    string `json:"tiempo_total,omitempty"`

	Cola         string `json:"cola,omitempty"`
	RabbitStatus string `json:"rabbitmq_status,omitempty"`
	RedisStatus  string `json:"redis_status,omitempty"`

	Estado        string   `json:"estado,omitempty"`
	Alerta        string   `json:"alerta,omitempty"`
	ErrorType     string   `json:"error_type,omitempty"`
	Errores       []string `json:"errores,omitempty"`
	Recomendacion string   `json:"recomendacion,omitempty"`
}

var strategyErrorCodes = map[purchase.StrategyTag]string{
	purchase.HTTPDirecto:            "HTTP_DIRECT_ERROR",
	purchase.ReintentosSimples:      "RETRY_EXHAUSTED",
	purchase.BackoffExponencial:     "BACKOFF_EXHAUSTED",
	purchase.ReintentosSofisticados: "REINTENTOS_SOFISTICADOS_EXHAUSTED",
	purchase.RedisQueue:             "REDIS_CONNECTION_ERROR",
	purchase.RabbitMQ:               "BROKER_CONNECTION_ERROR",
}

func (h *handler) handleCompra(w http.ResponseWriter, r *http.Request) {
	var req compraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error_type": "VALIDATION_ERROR", "error": "cuerpo de solicitud inválido"})
		return
	}

	result, reqErr := h.dispatch.Dispatch(r.Context(), purchase.Request{ProductID: req.ProductID, Quantity: req.Cantidad, Mode: req.Modo})
	if reqErr != nil {
		writeJSON(w, reqErr.Status, map[string]string{"error_type": string(reqErr.Type), "error": reqErr.Message})
		return
	}

	outcome := result.Outcome
	h.metrics.PurchasesTotal.WithLabelValues(string(result.Mode), string(outcome.Status)).Inc()
	for _, attemptErr := range outcome.Errors {
		h.metrics.StrategyAttempts.WithLabelValues(string(result.Mode), string(attemptErr.ReasonKind)).Inc()
	}
	if outcome.TotalWaitMs > 0 {
		h.metrics.StrategyWaitSecs.WithLabelValues(string(result.Mode)).Observe(float64(outcome.TotalWaitMs) / 1000.0)
	}
	if result.ReservationRolled {
		h.metrics.ReservationRollbck.Inc()
	}

	w.Header().Set("X-Correlation-Id", result.CorrelationID)

	resp := compraResponse{
		CorrelationID:     result.CorrelationID,
		ProductoID:        result.Product.ID,
		ProductoNombre:    result.Product.Name,
		CantidadComprada:  result.Quantity,
		StockRestante:     result.Product.Stock,
		TotalPagado:       result.Total,
		Disponible:        result.AvailableAfter,
		ModoProcesamiento: result.Mode,
		Procesamiento:     outcome.Narrative,
	}

	if outcome.Status == purchase.StatusFailed {
		resp.Mensaje = "No se pudo completar la compra"
		resp.Estado = "fallida"
		resp.Alerta = outcome.Narrative
		resp.ErrorType = strategyErrorCodes[result.Mode]
		resp.Recomendacion = outcome.Recommendation
		for _, attemptErr := range outcome.Errors {
			resp.Errores = append(resp.Errores, attemptErr.Message)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Mensaje = "Compra procesada exitosamente"
	switch result.Mode {
	case purchase.ReintentosSimples, purchase.BackoffExponencial, purchase.ReintentosSofisticados:
		intento := outcome.SuccessfulTry
		resp.IntentoExitoso = &intento
		resp.TiempoTotal = formatSeconds(outcome.TotalWaitMs)
	case purchase.RedisQueue:
		resp.Cola = outcome.Destination
		resp.RedisStatus = "enviado"
		h.metrics.QueueDepth.Set(float64(outcome.QueueDepth))
	case purchase.RabbitMQ:
		resp.Cola = outcome.Destination
		resp.RabbitStatus = "publicado"
	}

	writeJSON(w, http.StatusOK, resp)
}

func formatSeconds(ms int64) string {
	return time.Duration(ms * int64(time.Millisecond)).Round(10 * time.Millisecond).String()
}

// --- fault-injection control endpoints ---

type simularFalloRequest struct {
	Servicio string `json:"servicio"`
	Activo   bool   `json:"activo"`
}

func (h *handler) handleSimularFallo(w http.ResponseWriter, r *http.Request) {
	var req simularFalloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cuerpo de solicitud inválido"})
		return
	}

	snapshot, err := h.registry.Set(health.Service(req.Servicio), req.Activo)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":                 err.Error(),
			"servicios_disponibles": health.All,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"servicio":      req.Servicio,
		"nuevo_estado":  req.Activo,
		"estado_actual": snapshot,
	})
}

func (h *handler) handleResetConexiones(w http.ResponseWriter, r *http.Request) {
	h.registry.Reset()
	writeJSON(w, http.StatusOK, map[string]any{
		"mensaje":       "todas las conexiones han sido reactivadas",
		"estado_actual": h.registry.GetAll(),
	})
}

func (h *handler) handleDesactivarTodo(w http.ResponseWriter, r *http.Request) {
	h.registry.SetAll(false)
	writeJSON(w, http.StatusOK, map[string]any{
		"mensaje":       "todos los servicios han sido desactivados",
		"estado_actual": h.registry.GetAll(),
	})
}

func (h *handler) handleActivarTodo(w http.ResponseWriter, r *http.Request) {
	h.registry.SetAll(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"mensaje":       "todos los servicios han sido activados",
		"estado_actual": h.registry.GetAll(),
	})
}

var impactoPorModo = map[purchase.StrategyTag][]health.Service{
	purchase.HTTPDirecto:            {health.HTTPDirect, health.GeneralNetwork},
	purchase.ReintentosSimples:      {health.SimpleRetry, health.GeneralNetwork},
	purchase.BackoffExponencial:     {health.ExpBackoff, health.GeneralNetwork},
	purchase.ReintentosSofisticados: {health.ScheduledRetry, health.GeneralNetwork},
	purchase.RedisQueue:             {health.Redis, health.GeneralNetwork},
	purchase.RabbitMQ:               {health.RabbitMQ, health.GeneralNetwork},
}

func (h *handler) handleEstadoConexiones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"conexiones":       h.registry.GetAll(),
		"impacto_por_modo": impactoPorModo,
	})
}

// retryTestHarness holds the three retrying strategies that
// handleTestConnectionRetry runs once each against the current flag
// state, reporting their outcomes side by side without touching
// inventory — a diagnostic endpoint, not a purchase.
type retryTestHarness struct {
	simple    strategy.Strategy
	backoff   strategy.Strategy
	scheduled strategy.Strategy
}

func (h *handler) handleTestConnectionRetry(w http.ResponseWriter, r *http.Request) {
	msg := purchase.Message{Timestamp: time.Now(), State: "prueba"}

	simpleOutcome := h.testHarness.simple.Execute(r.Context(), msg)
	backoffOutcome := h.testHarness.backoff.Execute(r.Context(), msg)
	scheduledOutcome := h.testHarness.scheduled.Execute(r.Context(), msg)

	writeJSON(w, http.StatusOK, map[string]any{
		"estado_conexiones":       h.registry.GetAll(),
		"reintentos_simples":      simpleOutcome,
		"backoff_exponencial":     backoffOutcome,
		"reintentos_sofisticados": scheduledOutcome,
	})
}

// --- admin product CRUD ---

func (h *handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.inventory.List())
}

func (h *handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id inválido"})
		return
	}
	product, ok := h.inventory.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "producto no encontrado"})
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var product catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cuerpo de solicitud inválido"})
		return
	}
	created, err := h.inventory.Create(product)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type productPatchRequest struct {
	Nombre      *string  `json:"nombre"`
	Categoria   *string  `json:"categoria"`
	Precio      *float64 `json:"precio"`
	Stock       *int     `json:"stock"`
	Descripcion *string  `json:"descripcion"`
}

func (h *handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id inválido"})
		return
	}

	var patchReq productPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&patchReq); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cuerpo de solicitud inválido"})
		return
	}

	updated, err := h.inventory.Update(id, catalog.ProductPatch{
		Name:        patchReq.Nombre,
		Category:    patchReq.Categoria,
		Price:       patchReq.Precio,
		Stock:       patchReq.Stock,
		Description: patchReq.Descripcion,
	})
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id inválido"})
		return
	}
	if err := h.inventory.Delete(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- dashboard statistics ---

func (h *handler) handleEstadisticas(w http.ResponseWriter, r *http.Request) {
	products := h.inventory.List()

	disponibles := 0
	var precioTotal float64
	categorias := make(map[string]int)
	for _, p := range products {
		if p.Available {
			disponibles++
		}
		precioTotal += p.Price
		categorias[p.Category]++
	}

	precioPromedio := 0.0
	if len(products) > 0 {
		precioPromedio = precioTotal / float64(len(products))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_productos":       len(products),
		"productos_disponibles": disponibles,
		"productos_agotados":    len(products) - disponibles,
		"precio_promedio":       precioPromedio,
		"categorias":            categorias,
	})
}

func parseID(raw string) (int, error) {
	return strconv.Atoi(raw)
}
