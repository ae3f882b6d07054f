package web

import "github.com/gofiber/fiber/v3"

// Register mounts every API route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/node-types", h.GetNodeTypes)

	w := router.Group("/workflows")
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id/graph", h.UpdateWorkflowGraph)
	w.Get("/:id/versions", h.GetWorkflowVersions)
	w.Post("/:id/activate", h.ActivateWorkflow)
	w.Post("/:id/deactivate", h.DeactivateWorkflow)
	w.Post("/:id/test", h.TestWorkflow)
	w.Post("/:id/executions", h.StartExecution)

	s := router.Group("/submissions")
	s.Post("/", h.Submit)
	s.Post("/:id/trigger", h.TriggerSubmission)

	e := router.Group("/executions")
	e.Get("/:id", h.GetExecution)
	e.Post("/:id/stop", h.StopExecution)

	a := router.Group("/approvals")
	a.Get("/:token", h.GetApproval)
	a.Post("/:token/approve", h.ApproveApproval)
	a.Post("/:token/reject", h.RejectApproval)
}
