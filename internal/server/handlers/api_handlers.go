package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"face-lock-go/config"
	"face-lock-go/internal/db/repository"
	"face-lock-go/internal/server/sse"
	"face-lock-go/internal/services/enrollment"
	"face-lock-go/internal/services/session"
	"face-lock-go/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// APIHandler bündelt die REST- und SSE-Endpunkte
type APIHandler struct {
	cfg        *config.Config
	repo       repository.Repository
	session    *session.Service
	enrollment *enrollment.Service
	hub        *sse.Hub
}

// NewAPIHandler erstellt den API-Handler
func NewAPIHandler(
	cfg *config.Config,
	repo repository.Repository,
	sessionService *session.Service,
	enrollmentService *enrollment.Service,
	hub *sse.Hub,
) *APIHandler {
	return &APIHandler{
		cfg:        cfg,
		repo:       repo,
		session:    sessionService,
		enrollment: enrollmentService,
		hub:        hub,
	}
}

// RegisterRoutes registriert alle API-Routen
func (h *APIHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Lock-Steuerung
	router.GET("/status", h.GetStatus)
	router.POST("/target", h.SelectTarget)
	router.DELETE("/target", h.ReleaseTarget)

	// Identitäten
	router.GET("/identities", h.ListIdentities)
	router.POST("/identities", h.EnrollIdentity)
	router.DELETE("/identities/:id", h.DeleteIdentity)

	// Sitzungsereignisse
	router.GET("/events", h.ListEvents)
	router.GET("/events/stream", h.StreamEvents)

	// System
	router.GET("/system", h.GetSystemInfo)
}

// GetStatus liefert den aktuellen Lock-Zustand
func (h *APIHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Status())
}

// targetRequest ist der Body für die Zielwahl
type targetRequest struct {
	Name string `json:"name" binding:"required"`
}

// SelectTarget wählt die einzurastende Identität
func (h *APIHandler) SelectTarget(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	if !h.session.SelectTarget(req.Name) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Identity %q is not enrolled", req.Name)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Target selected",
		"target":  h.session.Target(),
	})
}

// ReleaseTarget gibt den aktuellen Lock frei
func (h *APIHandler) ReleaseTarget(c *gin.Context) {
	h.session.Release()
	c.JSON(http.StatusOK, gin.H{"message": "Lock released"})
}

// identityView ist die API-Darstellung einer Identität (ohne Embedding)
type identityView struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	EnrolledFrom string `json:"enrolled_from,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// ListIdentities listet alle eingelernten Identitäten
func (h *APIHandler) ListIdentities(c *gin.Context) {
	identities, err := h.repo.GetIdentities()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to fetch identities: %v", err)})
		return
	}

	views := make([]identityView, 0, len(identities))
	for _, ident := range identities {
		views = append(views, identityView{
			ID:           ident.ID,
			Name:         ident.Name,
			EnrolledFrom: ident.EnrolledFrom,
			CreatedAt:    ident.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"identities": views})
}

// EnrollIdentity lernt eine neue Identität aus einem hochgeladenen Bild ein
func (h *APIHandler) EnrollIdentity(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identity name is required"})
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image uploaded or invalid form data"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to open upload: %v", err)})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to read image data: %v", err)})
		return
	}

	ident, err := h.enrollment.EnrollImageData(name, data, file.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Enrollment failed: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Identity enrolled successfully",
		"identity": identityView{ID: ident.ID, Name: ident.Name, EnrolledFrom: ident.EnrolledFrom},
	})
}

// DeleteIdentity löscht eine Identität. Die laufende Erkennung behält sie
// bis zum Neustart; ein aktiver Lock auf sie bleibt bestehen.
func (h *APIHandler) DeleteIdentity(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid identity ID"})
		return
	}

	ident, err := h.repo.GetIdentityByID(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to fetch identity: %v", err)})
		return
	}
	if ident == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Identity not found"})
		return
	}

	if err := h.repo.DeleteIdentity(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to delete identity: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Identity deleted successfully"})
}

// ListEvents liefert Sitzungsereignisse mit Pagination
func (h *APIHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	events, total, err := h.repo.GetEvents(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to fetch events: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"pagination": gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

// StreamEvents streamt den Frame-Zustand als Server-Sent Events
func (h *APIHandler) StreamEvents(c *gin.Context) {
	log.Info("SSE client connecting...")

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientChannel := make(sse.Client)
	h.hub.Register(clientChannel)
	defer func() {
		h.hub.Unregister(clientChannel)
		log.Info("SSE client unregistered.")
	}()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		log.Error("Streaming unsupported by the writer")
		c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	for {
		select {
		case message, open := <-clientChannel:
			if !open {
				return
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", message); err != nil {
				log.Errorf("Error writing to SSE client: %v", err)
				return
			}
			flusher.Flush()

		case <-c.Request.Context().Done():
			log.Info("SSE client disconnected (context done).")
			return
		}
	}
}

// GetSystemInfo liefert System- und Bestandsstatistiken
func (h *APIHandler) GetSystemInfo(c *gin.Context) {
	dbStats, err := h.repo.GetStatistics()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to fetch statistics: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"system":   utils.GetSystemStats(),
		"database": dbStats,
	})
}
