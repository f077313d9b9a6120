package response

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// =============================================================================
// API Response Envelope
// =============================================================================
// Admin and webhook endpoints answer with:
//
//	{"data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
//
// or, on failure:
//
//	{"error": {"code": "...", "message": "...", "details": [...]}, "meta": {...}}
// =============================================================================

type Response struct {
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
	Meta  Meta       `json:"meta"`
}

type ErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type Meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

type PaginatedData struct {
	Items      any        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

func Success(c *fiber.Ctx, data any) error {
	return SuccessWithStatus(c, fiber.StatusOK, data)
}

func SuccessWithStatus(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Response{
		Data: data,
		Meta: buildMeta(c),
	})
}

func Created(c *fiber.Ctx, data any) error {
	return SuccessWithStatus(c, fiber.StatusCreated, data)
}

// Paginated wraps one page of items. perPage must be positive.
func Paginated(c *fiber.Ctx, items any, page, perPage int, total int64) error {
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))

	return c.JSON(Response{
		Data: PaginatedData{
			Items: items,
			Pagination: Pagination{
				Page:       page,
				PerPage:    perPage,
				Total:      total,
				TotalPages: totalPages,
				HasMore:    page < totalPages,
			},
		},
		Meta: buildMeta(c),
	})
}

func Error(c *fiber.Ctx, status int, code, message string, details ...string) error {
	return c.Status(status).JSON(Response{
		Error: &ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: buildMeta(c),
	})
}

func buildMeta(c *fiber.Ctx) Meta {
	return Meta{
		RequestID: GetRequestID(c),
		Timestamp: time.Now().UTC(),
	}
}

// GetRequestID returns the request ID set by middleware, the inbound header,
// or a fresh one stored for the rest of the request.
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("request_id").(string); ok && id != "" {
		return id
	}
	if id := c.Get("X-Request-ID"); id != "" {
		return id
	}
	id := uuid.New().String()
	c.Locals("request_id", id)
	return id
}
