// api/handlers/event_handlers.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cloudboard/api/models"
	"cloudboard/api/store"
)

const maxTrackBody = 1 << 20

type EventHandlers struct {
	events  EventRepository
	domains DomainRepository
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

func NewEventHandlers(events EventRepository, domains DomainRepository, timeout time.Duration, log *zap.Logger) *EventHandlers {
	return &EventHandlers{
		events:  events,
		domains: domains,
		timeout: timeout,
		log:     log,
		now:     time.Now,
	}
}

// attribution is who an event is recorded against.
type attribution struct {
	domain   string
	domainID int64
	userID   int64
}

type trackError struct {
	status int
	code   string
	msg    string
}

func (e *trackError) Error() string { return e.msg }

// Track records one event, or a batch when the body is a JSON array.
func (h *EventHandlers) Track(c *gin.Context) {
	p, ok := mustPrincipal(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxTrackBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		validationError(c, err)
		return
	}

	reqs, batch, err := decodeTrack(body)
	if err != nil {
		validationError(c, err)
		return
	}
	if len(reqs) == 0 {
		c.Status(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	now := h.now().UTC()
	ip := c.ClientIP()
	byName := make(map[string]attribution)
	events := make([]models.RawEvent, 0, len(reqs))
	for _, req := range reqs {
		attr, err := h.attribute(ctx, p, req.Domain, byName)
		if err != nil {
			var te *trackError
			if errors.As(err, &te) {
				respondError(c, te.status, te.code, te.msg)
				return
			}
			internalError(c, err, "failed to resolve domain")
			return
		}

		event := req.ToRawEvent(uuid.New().String(), ip, attr.userID, attr.domainID, now)
		event.Domain = attr.domain
		events = append(events, event)
	}

	if err := h.events.InsertEvents(ctx, events); err != nil {
		internalError(c, err, "failed to record events")
		return
	}

	h.log.Debug("Events tracked", zap.Int("count", len(events)), zap.String("principal", models.PrincipalKind(p)))
	if batch {
		c.JSON(http.StatusCreated, events)
		return
	}
	c.JSON(http.StatusCreated, events[0])
}

func decodeTrack(body []byte) (reqs []models.TrackEventRequest, batch bool, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false, errors.New("request body is empty")
	}

	if trimmed[0] == '[' {
		batch = true
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, true, fmt.Errorf("invalid event batch: %w", err)
		}
	} else {
		var req models.TrackEventRequest
		if err := json.Unmarshal(trimmed, &req); err != nil {
			return nil, false, fmt.Errorf("invalid event: %w", err)
		}
		reqs = []models.TrackEventRequest{req}
	}

	for i := range reqs {
		if err := binding.Validator.ValidateStruct(&reqs[i]); err != nil {
			if batch {
				return nil, true, fmt.Errorf("event %d: %w", i, err)
			}
			return nil, false, err
		}
	}
	return reqs, batch, nil
}

// attribute decides which domain and owner an event belongs to. Site
// credentials always record against their own domain; users must name a
// domain they own.
func (h *EventHandlers) attribute(ctx context.Context, p models.Principal, name string, cache map[string]attribution) (attribution, error) {
	switch p := p.(type) {
	case models.DomainPrincipal:
		return attribution{domain: p.Domain, domainID: p.DomainID, userID: p.OwnerID}, nil
	case models.APIKeyPrincipal:
		return attribution{domain: p.Domain, domainID: p.DomainID, userID: p.OwnerID}, nil
	case models.UserPrincipal:
		name = normalizeDomain(name)
		if attr, ok := cache[name]; ok {
			return attr, nil
		}
		domain, err := h.domains.GetDomainByName(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return attribution{}, &trackError{http.StatusNotFound, "not_found", "domain " + name + " is not registered"}
			}
			return attribution{}, err
		}
		if !ownsDomain(p, domain) {
			return attribution{}, &trackError{http.StatusForbidden, "forbidden", "you do not own domain " + name}
		}
		attr := attribution{domain: domain.Domain, domainID: domain.ID, userID: p.UserID}
		cache[name] = attr
		return attr, nil
	default:
		return attribution{}, &trackError{http.StatusForbidden, "forbidden", "unsupported principal"}
	}
}

func (h *EventHandlers) List(c *gin.Context) {
	var page models.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		validationError(c, err)
		return
	}

	ctx, ids, ok := h.scope(c)
	if !ok {
		return
	}
	defer ctx.cancel()

	events, err := h.events.ListEvents(ctx, ids, page.Limit, page.Offset)
	if err != nil {
		internalError(c, err, "failed to list events")
		return
	}
	if len(events) == 0 {
		notFound(c, "no events found")
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EventHandlers) Latest(c *gin.Context) {
	ctx, ids, ok := h.scope(c)
	if !ok {
		return
	}
	defer ctx.cancel()

	event, err := h.events.LatestEvent(ctx, ids)
	if err != nil {
		storeError(c, err, "no events found", "failed to get latest event")
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *EventHandlers) Get(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	ctx, ids, ok := h.scope(c)
	if !ok {
		return
	}
	defer ctx.cancel()

	event, err := h.events.GetEvent(ctx, ids, id)
	if err != nil {
		storeError(c, err, "event not found", "failed to get event")
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *EventHandlers) Delete(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	ctx, ids, ok := h.scope(c)
	if !ok {
		return
	}
	defer ctx.cancel()

	if err := h.events.DeleteEvent(ctx, ids, id); err != nil {
		storeError(c, err, "event not found", "failed to delete event")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *EventHandlers) DeleteLatest(c *gin.Context) {
	ctx, ids, ok := h.scope(c)
	if !ok {
		return
	}
	defer ctx.cancel()

	event, err := h.events.LatestEvent(ctx, ids)
	if err != nil {
		storeError(c, err, "no events found", "failed to delete latest event")
		return
	}
	if err := h.events.DeleteEvent(ctx, ids, event.ID); err != nil {
		storeError(c, err, "no events found", "failed to delete latest event")
		return
	}
	c.Status(http.StatusNoContent)
}

func eventID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		validationError(c, errors.New("id must be a uuid"))
		return "", false
	}
	return id, true
}

type scopedContext struct {
	context.Context
	cancel context.CancelFunc
}

// scope resolves the caller's visible domains under the request timeout.
func (h *EventHandlers) scope(c *gin.Context) (scopedContext, []int64, bool) {
	p, ok := mustPrincipal(c)
	if !ok {
		return scopedContext{}, nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	ids, err := scopedDomainIDs(ctx, h.domains, p)
	if err != nil {
		cancel()
		internalError(c, err, "failed to resolve domains")
		return scopedContext{}, nil, false
	}
	return scopedContext{Context: ctx, cancel: cancel}, ids, true
}
