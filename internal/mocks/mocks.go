// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/internal/workflow"
)

// -- Browser Mocks --

// MockBrowserLauncher mocks schemas.BrowserLauncher.
type MockBrowserLauncher struct {
	mock.Mock
}

func (m *MockBrowserLauncher) Open(ctx context.Context, mode schemas.BrowserMode) (schemas.BrowserContext, error) {
	args := m.Called(ctx, mode)
	bc, _ := args.Get(0).(schemas.BrowserContext)
	return bc, args.Error(1)
}

// MockBrowserContext mocks schemas.BrowserContext.
type MockBrowserContext struct {
	mock.Mock
}

func (m *MockBrowserContext) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockBrowserContext) Locate(ctx context.Context, target schemas.UITarget) (schemas.Element, error) {
	args := m.Called(ctx, target)
	el, _ := args.Get(0).(schemas.Element)
	return el, args.Error(1)
}

func (m *MockBrowserContext) Query(ctx context.Context, target schemas.UITarget) (bool, error) {
	args := m.Called(ctx, target)
	return args.Bool(0), args.Error(1)
}

func (m *MockBrowserContext) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockElement mocks schemas.Element.
type MockElement struct {
	mock.Mock
}

func (m *MockElement) Click(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockElement) Fill(ctx context.Context, value string) error {
	return m.Called(ctx, value).Error(0)
}

func (m *MockElement) Check(ctx context.Context) error { return m.Called(ctx).Error(0) }

// -- Batch Mocks --

// MockResultSink mocks schemas.ResultSink.
type MockResultSink struct {
	mock.Mock
}

func (m *MockResultSink) Persist(ctx context.Context, result schemas.BatchResult) error {
	return m.Called(ctx, result).Error(0)
}

// MockExecutor mocks a single-record workflow run, as done by *workflow.Engine.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, record schemas.SignupRecord) (*workflow.RunResult, error) {
	args := m.Called(ctx, record)
	res, _ := args.Get(0).(*workflow.RunResult)
	return res, args.Error(1)
}

// -- Prompt Mock --

// MockPrompter mocks config.Prompter.
type MockPrompter struct {
	mock.Mock
}

func (m *MockPrompter) Ask(ctx context.Context, field, label string) (string, error) {
	args := m.Called(ctx, field, label)
	return args.String(0), args.Error(1)
}

func (m *MockPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	args := m.Called(ctx, question)
	return args.Bool(0), args.Error(1)
}
