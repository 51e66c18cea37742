package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/movieflix/internal/model"
    "github.com/iliyamo/movieflix/internal/queue"
    "github.com/iliyamo/movieflix/internal/repository"
    "github.com/iliyamo/movieflix/internal/service"
)

// EntryHandler serves the /api/entries endpoints.  Every operation is
// scoped to the authenticated caller; the owner id never comes from the
// request body.
type EntryHandler struct {
    Entries     *repository.EntryRepo
    Events      service.Publisher
    Log         *zap.SugaredLogger
    PageSize    int // default limit
    MaxPageSize int // cap for the limit query parameter
}

// NewEntryHandler wires an EntryHandler.  A nil publisher disables events.
func NewEntryHandler(entries *repository.EntryRepo, events service.Publisher, log *zap.SugaredLogger, pageSize, maxPageSize int) *EntryHandler {
    if events == nil {
        events = service.NopPublisher{}
    }
    if pageSize < 1 {
        pageSize = 20
    }
    if maxPageSize < pageSize {
        maxPageSize = pageSize
    }
    return &EntryHandler{Entries: entries, Events: events, Log: log, PageSize: pageSize, MaxPageSize: maxPageSize}
}

// entryReq is the body of create and update.  Both take the full schema;
// pointer fields distinguish "missing" from zero.
type entryReq struct {
    Title       string   `json:"title" validate:"required,notblank,max=255"`
    Type        string   `json:"type" validate:"required,oneof=movie tv_show"`
    Genre       string   `json:"genre" validate:"required,notblank,max=100"`
    ReleaseYear *int     `json:"releaseYear" validate:"required,releaseyear"`
    Rating      *float64 `json:"rating" validate:"required,gte=0,lte=10"`
    Description string   `json:"description" validate:"required,notblank"`
    ImageURL    *string  `json:"imageUrl" validate:"omitempty,max=2048"`
    Director    string   `json:"director" validate:"required,notblank,max=255"`
    Budget      *float64 `json:"budget" validate:"omitempty,gte=0"`
    Duration    *int     `json:"duration" validate:"required,gte=1"`
    Location    *string  `json:"location" validate:"omitempty,max=255"`
}

func (r entryReq) fields() model.EntryFields {
    return model.EntryFields{
        Title:       strings.TrimSpace(r.Title),
        Type:        model.EntryType(r.Type),
        Genre:       strings.TrimSpace(r.Genre),
        ReleaseYear: *r.ReleaseYear,
        Rating:      *r.Rating,
        Description: strings.TrimSpace(r.Description),
        ImageURL:    trimmedOrNil(r.ImageURL),
        Director:    strings.TrimSpace(r.Director),
        Budget:      r.Budget,
        Duration:    *r.Duration,
        Location:    trimmedOrNil(r.Location),
    }
}

func trimmedOrNil(s *string) *string {
    if s == nil {
        return nil
    }
    v := strings.TrimSpace(*s)
    if v == "" {
        return nil
    }
    return &v
}

type listResp struct {
    Data  []model.Entry `json:"data"`
    Page  int           `json:"page"`
    Limit int           `json:"limit"`
}

// List handles GET /api/entries?page=&limit=.  Missing or invalid values
// fall back to page 1 and the default page size; limit is capped.
func (h *EntryHandler) List(c echo.Context) error {
    uid, ok := getUserID(c)
    if !ok {
        return unauthorized(c)
    }
    page := queryInt(c, "page", 1)
    limit := queryInt(c, "limit", h.PageSize)
    if limit > h.MaxPageSize {
        limit = h.MaxPageSize
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    entries, err := h.Entries.List(ctx, uid, page, limit)
    if err != nil {
        logError(h.Log, c, err, "list entries failed", "page", page, "limit", limit)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to fetch entries"})
    }
    return c.JSON(http.StatusOK, listResp{Data: entries, Page: page, Limit: limit})
}

// Get handles GET /api/entries/:id.
func (h *EntryHandler) Get(c echo.Context) error {
    uid, ok := getUserID(c)
    if !ok {
        return unauthorized(c)
    }
    id, ok := parseID(c)
    if !ok {
        return entryNotFound(c)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    e, err := h.Entries.Get(ctx, uid, id)
    if err != nil {
        if errors.Is(err, repository.ErrEntryNotFound) {
            return entryNotFound(c)
        }
        logError(h.Log, c, err, "get entry failed", "entry_id", id)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to fetch entry"})
    }
    return c.JSON(http.StatusOK, echo.Map{"data": e})
}

// Create handles POST /api/entries.
func (h *EntryHandler) Create(c echo.Context) error {
    uid, ok := getUserID(c)
    if !ok {
        return unauthorized(c)
    }
    var req entryReq
    if err := bindBody(c, &req); err != nil {
        return validationFailed(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    e, err := h.Entries.Create(ctx, uid, req.fields())
    if err != nil {
        logError(h.Log, c, err, "create entry failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create entry"})
    }
    h.publish(c, queue.EntryCreated, e)
    return c.JSON(http.StatusCreated, echo.Map{"data": e})
}

// Update handles PUT /api/entries/:id.  The body is validated before the
// id is looked up, so an invalid body on a missing id reports 400.
func (h *EntryHandler) Update(c echo.Context) error {
    uid, ok := getUserID(c)
    if !ok {
        return unauthorized(c)
    }
    var req entryReq
    if err := bindBody(c, &req); err != nil {
        return validationFailed(c, err)
    }
    id, ok := parseID(c)
    if !ok {
        return entryNotFound(c)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    e, err := h.Entries.Update(ctx, uid, id, req.fields())
    if err != nil {
        if errors.Is(err, repository.ErrEntryNotFound) {
            return entryNotFound(c)
        }
        logError(h.Log, c, err, "update entry failed", "entry_id", id)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update entry"})
    }
    h.publish(c, queue.EntryUpdated, e)
    return c.JSON(http.StatusOK, echo.Map{"data": e})
}

// Delete handles DELETE /api/entries/:id and returns the removed entry.
func (h *EntryHandler) Delete(c echo.Context) error {
    uid, ok := getUserID(c)
    if !ok {
        return unauthorized(c)
    }
    id, ok := parseID(c)
    if !ok {
        return entryNotFound(c)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    e, err := h.Entries.Delete(ctx, uid, id)
    if err != nil {
        if errors.Is(err, repository.ErrEntryNotFound) {
            return entryNotFound(c)
        }
        logError(h.Log, c, err, "delete entry failed", "entry_id", id)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete entry"})
    }
    h.publish(c, queue.EntryDeleted, e)
    return c.JSON(http.StatusOK, echo.Map{"data": e})
}

// publish is best effort: a broker failure is logged and never changes the
// HTTP result.
func (h *EntryHandler) publish(c echo.Context, t queue.EntryEventType, e *model.Entry) {
    ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 2*time.Second)
    defer cancel()
    if err := h.Events.Publish(ctx, queue.NewEntryEvent(t, e, time.Now())); err != nil && h.Log != nil {
        h.Log.Warnw("publish entry event failed", append(requestFields(c), "event", t, "entry_id", e.ID, "error", err)...)
    }
}

func queryInt(c echo.Context, name string, def int) int {
    n, err := strconv.Atoi(c.QueryParam(name))
    if err != nil || n < 1 {
        return def
    }
    return n
}

func entryNotFound(c echo.Context) error {
    return c.JSON(http.StatusNotFound, echo.Map{"error": "Entry not found"})
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
}
