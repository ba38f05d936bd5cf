package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cloudboard/api/middleware"
	"cloudboard/api/models"
	"cloudboard/api/store"
)

type DomainHandlers struct {
	domains DomainRepository
	log     *zap.Logger
}

func NewDomainHandlers(domains DomainRepository, log *zap.Logger) *DomainHandlers {
	return &DomainHandlers{domains: domains, log: log}
}

func (h *DomainHandlers) List(c *gin.Context) {
	var page models.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		validationError(c, err)
		return
	}

	domains, err := h.domains.ListDomains(c.Request.Context(), page.Limit, page.Offset)
	if err != nil {
		internalError(c, err, "failed to list domains")
		return
	}
	if len(domains) == 0 {
		notFound(c, "no domains found")
		return
	}
	c.JSON(http.StatusOK, domains)
}

func (h *DomainHandlers) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	domain, err := h.domains.GetDomainByID(c.Request.Context(), id)
	if err != nil {
		storeError(c, err, "domain not found", "failed to get domain")
		return
	}
	c.JSON(http.StatusOK, domain)
}

// Create registers a domain owned by the calling user. Names are stored
// lower-cased.
func (h *DomainHandlers) Create(c *gin.Context) {
	var req models.CreateDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	user, _ := middleware.CurrentUser(c)
	domain, err := h.domains.CreateDomain(c.Request.Context(), normalizeDomain(req.Domain), user.UserID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(c, http.StatusConflict, "conflict", "domain is already registered")
			return
		}
		internalError(c, err, "failed to create domain")
		return
	}

	c.JSON(http.StatusCreated, domain)
}
