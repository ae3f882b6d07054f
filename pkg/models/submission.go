package models

import "time"

type Form struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Login string `json:"login"`
}

// Submission is a stored answer to a form. It is created by the surrounding
// application and read by the engine when a workflow is triggered.
type Submission struct {
	ID        string         `json:"id"`
	FormID    string         `json:"form_id"`
	Form      *Form          `json:"form,omitempty"`
	Data      map[string]any `json:"data"`
	User      *User          `json:"user,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SeedContext builds the initial execution context for this submission.
func (s *Submission) SeedContext() map[string]any {
	ctx := map[string]any{
		ContextKeySubmission: map[string]any{
			"id":      s.ID,
			"form_id": s.FormID,
			"data":    cloneMap(s.Data),
		},
	}

	if s.Form != nil {
		ctx[ContextKeyForm] = map[string]any{"id": s.Form.ID, "name": s.Form.Name}
	}

	if s.User != nil {
		ctx[ContextKeyUser] = map[string]any{
			"id":    s.User.ID,
			"name":  s.User.Name,
			"email": s.User.Email,
			"login": s.User.Login,
		}
	}

	return ctx
}

// EmailTemplate is a stored HTML email with placeholder markers.
type EmailTemplate struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}
