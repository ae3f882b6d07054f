package web

import (
	"errors"

	"github.com/dukex/formflow/pkg/approval"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/dukex/formflow/pkg/services"
	"github.com/dukex/formflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service, engine and persistence errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err), errors.Is(err, workflow.ErrNoStartNode):
		return badRequest(c, err.Error())

	case services.IsConflictError(err),
		errors.Is(err, workflow.ErrNotWaiting),
		errors.Is(err, workflow.ErrExecutionClosed),
		errors.Is(err, workflow.ErrStepInFlight):
		return conflict(c, err.Error())

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", "workflow not found")

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution_not_found", "execution not found")

	case errors.Is(err, persistence.ErrSubmissionNotFound):
		return notFound(c, "submission_not_found", "submission not found")

	// Unknown and already answered tokens are indistinguishable to the caller.
	case errors.Is(err, approval.ErrTokenNotFound):
		return notFound(c, "not_found", "approval request not found or already processed")

	case errors.Is(err, approval.ErrTokenExpired):
		problem := problems.NewStatusProblem(410).
			WithInstance(c.Path()).
			WithType("token_expired").
			WithDetail("approval link has expired")

		return c.Status(fiber.StatusGone).JSON(problem)

	default:
		return internalError(c, err)
	}
}
