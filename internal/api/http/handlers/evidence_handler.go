package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/api/dto"
	"github.com/spec-kit/workorder-service/internal/service"
	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// EvidenceHandler serves uploads, listings and downloads of ticket files.
type EvidenceHandler struct {
	evidence *service.EvidenceService
}

// NewEvidenceHandler constructs handler.
func NewEvidenceHandler(evidence *service.EvidenceService) *EvidenceHandler {
	return &EvidenceHandler{evidence: evidence}
}

// Upload POST /tickets/:id/evidence (multipart field "file").
func (h *EvidenceHandler) Upload(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id", "ticket")
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file is required", map[string]any{"file": "is required"})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("open upload: %w", err))
	}
	defer file.Close()

	evidence, err := h.evidence.Upload(c.UserContext(), actor, ticketID, service.UploadInput{
		Filename: header.Filename,
		MimeType: header.Header.Get(fiber.HeaderContentType),
		Size:     header.Size,
		Content:  file,
	}, requestContext(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewEvidenceResponse(evidence)})
}

// List GET /tickets/:id/evidence.
func (h *EvidenceHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id", "ticket")
	if err != nil {
		return err
	}
	items, err := h.evidence.List(c.UserContext(), actor, ticketID)
	if err != nil {
		return err
	}
	list := dto.NewEvidenceList(items)
	if list == nil {
		list = []dto.EvidenceResponse{}
	}
	return c.JSON(fiber.Map{"data": list})
}

// Download GET /evidence/:id/download.
func (h *EvidenceHandler) Download(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	evidenceID, err := pathID(c, "id", "evidence")
	if err != nil {
		return err
	}
	evidence, content, err := h.evidence.Open(c.UserContext(), actor, evidenceID)
	if err != nil {
		return err
	}
	c.Attachment(evidence.Filename)
	c.Set(fiber.HeaderContentType, evidence.MimeType)
	// fasthttp closes content once the body has been written.
	return c.SendStream(content, int(evidence.Size))
}

// Delete DELETE /tickets/:id/evidence/:evidenceId. Admin only.
func (h *EvidenceHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id", "ticket")
	if err != nil {
		return err
	}
	evidenceID, err := pathID(c, "evidenceId", "evidence")
	if err != nil {
		return err
	}
	if err := h.evidence.Delete(c.UserContext(), actor, ticketID, evidenceID, requestContext(c)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
