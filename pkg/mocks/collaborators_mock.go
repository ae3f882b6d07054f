package mocks

import (
	"context"

	"github.com/dukex/formflow/pkg/audit"
	"github.com/dukex/formflow/pkg/mail"
	"github.com/stretchr/testify/mock"
)

// MockMailer is a mock implementation of mail.Mailer interface.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg mail.Message) error {
	args := m.Called(ctx, msg)

	return args.Error(0)
}

// MockAuditSink is a mock implementation of audit.Sink interface.
type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) Log(ctx context.Context, entry audit.Entry) {
	m.Called(ctx, entry)
}

// MockContinuer is a mock implementation of approval.Continuer interface.
type MockContinuer struct {
	mock.Mock
}

func (m *MockContinuer) ContinueExecution(ctx context.Context, executionID string) error {
	args := m.Called(ctx, executionID)

	return args.Error(0)
}

func (m *MockContinuer) RejectExecution(ctx context.Context, executionID, reason string) error {
	args := m.Called(ctx, executionID, reason)

	return args.Error(0)
}

// MockSSRFValidator is a mock implementation of ssrf.Validator interface.
type MockSSRFValidator struct {
	mock.Mock
}

func (m *MockSSRFValidator) Check(ctx context.Context, target string) error {
	args := m.Called(ctx, target)

	return args.Error(0)
}
