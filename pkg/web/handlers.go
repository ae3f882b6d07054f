// Package web provides the HTTP handlers of the formflow API.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/formflow/pkg/approval"
	"github.com/dukex/formflow/pkg/models"
	"github.com/dukex/formflow/pkg/persistence"
	"github.com/dukex/formflow/pkg/services"
	"github.com/dukex/formflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type APIHandlers struct {
	workflowService *services.Workflow
	nodeService     *services.Node
	engine          *workflow.Executor
	approvals       *approval.Service
	executions      persistence.ExecutionRepository
	submissions     persistence.SubmissionRepository
	validator       *validator.Validate
	logger          *slog.Logger
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	nodeService *services.Node,
	engine *workflow.Executor,
	approvals *approval.Service,
	store persistence.Persistence,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		nodeService:     nodeService,
		engine:          engine,
		approvals:       approvals,
		executions:      store.ExecutionRepository(),
		submissions:     store.SubmissionRepository(),
		validator:       validator,
		logger:          logger.With("module", "web"),
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(h.nodeService.Types())
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		FormID:      req.FormID,
		FormIDs:     req.FormIDs,
		TriggerOn:   req.TriggerOn,
		Active:      req.Active,
		Nodes:       req.Nodes,
		Edges:       req.Edges,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflowGraph(c fiber.Ctx) error {
	var req UpdateGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.UpdateGraph(c.Context(), c.Params("id"), req.Nodes, req.Edges)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) GetWorkflowVersions(c fiber.Ctx) error {
	versions, err := h.workflowService.Versions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(versions)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	if err := h.workflowService.Activate(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	if err := h.workflowService.Deactivate(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// TestWorkflow previews the path a submission would take without executing any node.
func (h *APIHandlers) TestWorkflow(c fiber.Ctx) error {
	var req TestWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	wf, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	result, err := workflow.TestWorkflow(wf, req.Data)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// StartExecution runs an active workflow by hand.
func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	var req StartExecutionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	id := c.Params("id")

	if err := h.workflowService.RequireActive(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	wf, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	var submission *models.Submission

	if req.SubmissionID != "" {
		submission, err = h.submissions.GetByID(c.Context(), req.SubmissionID)
		if err != nil {
			return handleServiceError(c, err)
		}
	}

	exec, err := h.engine.StartExecution(c.Context(), wf, submission)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(exec)
}

// Submit stores a submission and starts the workflows listening to its form.
func (h *APIHandlers) Submit(c fiber.Ctx) error {
	var req SubmitRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id, err := uuid.NewV7()
	if err != nil {
		return internalError(c, err)
	}

	submission := &models.Submission{
		ID:        id.String(),
		FormID:    req.FormID,
		Form:      req.Form,
		Data:      req.Data,
		User:      req.User,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.submissions.Save(c.Context(), submission); err != nil {
		return internalError(c, err)
	}

	return h.trigger(c, submission)
}

// TriggerSubmission starts the workflows of an already stored submission.
func (h *APIHandlers) TriggerSubmission(c fiber.Ctx) error {
	submission, err := h.submissions.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return h.trigger(c, submission)
}

func (h *APIHandlers) trigger(c fiber.Ctx, submission *models.Submission) error {
	executions, err := h.engine.TriggerForSubmission(c.Context(), submission)

	response := TriggerResponse{
		SubmissionID: submission.ID,
		ExecutionIDs: executionIDs(executions),
	}

	if err != nil {
		if len(executions) == 0 {
			return handleServiceError(c, err)
		}

		response.Errors = []string{err.Error()}
	}

	return c.Status(fiber.StatusAccepted).JSON(response)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	exec, err := h.executions.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(exec)
}

func (h *APIHandlers) StopExecution(c fiber.Ctx) error {
	var req StopExecutionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	exec, err := h.engine.StopExecution(c.Context(), c.Params("id"), req.StoppedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(exec)
}

// GetApproval shows a pending request. The token itself is never echoed back.
func (h *APIHandlers) GetApproval(c fiber.Ctx) error {
	request, err := h.approvals.Find(c.Context(), c.Params("token"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(request)
}

func (h *APIHandlers) ApproveApproval(c fiber.Ctx) error {
	return h.decide(c, h.approvals.Approve)
}

func (h *APIHandlers) RejectApproval(c fiber.Ctx) error {
	return h.decide(c, h.approvals.Reject)
}

type decisionFunc func(ctx context.Context, token string, decision approval.Decision) (*models.ApprovalRequest, error)

func (h *APIHandlers) decide(c fiber.Ctx, decide decisionFunc) error {
	var req ApprovalDecisionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	request, err := decide(c.Context(), c.Params("token"), approval.Decision{
		RespondedBy: req.RespondedBy,
		Comment:     req.Comment,
	})
	if err != nil && request == nil {
		return handleServiceError(c, err)
	}

	// The decision is stored even when the execution could not be moved on.
	if err != nil {
		h.logger.ErrorContext(c.Context(), "approval recorded but execution not updated",
			"execution_id", request.ExecutionID,
			"error", err,
		)

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"approval": request,
			"error":    err.Error(),
		})
	}

	return c.JSON(fiber.Map{"approval": request})
}
