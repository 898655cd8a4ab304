package main

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nimasrn/rent-reminders/internal/messaging"
	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/rs/zerolog/log"
)

// Delivery is one message the mock provider has accepted.
type Delivery struct {
	DeliveryID  string            `json:"delivery_id"`
	ReminderID  string            `json:"reminder_id"`
	To          string            `json:"to"`
	Message     string            `json:"message"`
	Status      string            `json:"status"`
	Error       string            `json:"error,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type HealthResponse struct {
	Status      string    `json:"status"`
	ProviderID  string    `json:"provider_id"`
	Timestamp   time.Time `json:"timestamp"`
	SuccessRate float64   `json:"success_rate"`
}

var rejectReasons = []string{
	"recipient unreachable",
	"invalid recipient number",
	"message blocked by carrier",
}

// MockProvider simulates the messaging collaborator: it accepts reminder
// payloads, waits a random delay and either delivers or rejects them.
type MockProvider struct {
	mu          sync.Mutex
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	providerID  string
	rng         *rand.Rand
	deliveries  map[string]*Delivery
}

func NewMockProvider(successRate float64, minDelay, maxDelay time.Duration) *MockProvider {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &MockProvider{
		successRate: successRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		providerID:  "MOCK_PROVIDER_" + uuid.NewString()[:8],
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		deliveries:  make(map[string]*Delivery),
	}
}

func (m *MockProvider) delay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) succeed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.successRate
}

func (m *MockProvider) rejectReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return rejectReasons[m.rng.Intn(len(rejectReasons))]
}

func (m *MockProvider) deliver(p *model.MessagePayload) *Delivery {
	time.Sleep(m.delay())

	d := &Delivery{
		ReminderID:  p.Metadata.ReminderID,
		To:          p.To,
		Message:     p.Message,
		ProcessedAt: time.Now(),
		Metadata:    p.TemplateVariables,
	}
	if m.succeed() {
		d.DeliveryID = uuid.NewString()
		d.Status = messaging.StatusSent
		log.Info().
			Str("reminder_id", d.ReminderID).
			Str("to", d.To).
			Str("delivery_id", d.DeliveryID).
			Msg("reminder delivered")
	} else {
		d.Status = messaging.StatusFailed
		d.Error = m.rejectReason()
		log.Warn().
			Str("reminder_id", d.ReminderID).
			Str("to", d.To).
			Str("reason", d.Error).
			Msg("reminder rejected")
	}

	if d.DeliveryID != "" {
		m.mu.Lock()
		m.deliveries[d.DeliveryID] = d
		m.mu.Unlock()
	}
	return d
}

func (m *MockProvider) lookup(id string) (*Delivery, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	return d, ok
}

type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) Send(c *gin.Context) {
	var p model.MessagePayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	if p.To == "" || p.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to and message are required"})
		return
	}

	d := h.provider.deliver(&p)
	c.JSON(http.StatusOK, model.DeliveryResult{
		DeliveryID: d.DeliveryID,
		Status:     d.Status,
		Error:      d.Error,
	})
}

func (h *Handler) GetDelivery(c *gin.Context) {
	d, ok := h.provider.lookup(c.Param("delivery_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "delivery not found"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) Health(c *gin.Context) {
	h.provider.mu.Lock()
	rate := h.provider.successRate
	h.provider.mu.Unlock()
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		ProviderID:  h.provider.providerID,
		Timestamp:   time.Now(),
		SuccessRate: rate,
	})
}

// UpdateConfig changes the success rate at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var req struct {
		SuccessRate *float64 `json:"success_rate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	if req.SuccessRate == nil || *req.SuccessRate < 0 || *req.SuccessRate > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "success_rate must be between 0 and 1"})
		return
	}

	h.provider.mu.Lock()
	h.provider.successRate = *req.SuccessRate
	h.provider.mu.Unlock()
	log.Info().Float64("rate", *req.SuccessRate).Msg("success rate updated")

	c.JSON(http.StatusOK, gin.H{"success_rate": *req.SuccessRate})
}

func SetupRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	v1 := router.Group("/api/v1")
	v1.POST("/messages/send", h.Send)
	v1.GET("/messages/:delivery_id", h.GetDelivery)
	v1.PUT("/config", h.UpdateConfig)

	router.GET(messaging.HealthPath, h.Health)
	return router
}
