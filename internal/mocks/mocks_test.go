package mocks_test

import (
	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/internal/batch"
	"github.com/xkilldash9x/signup-cli/internal/config"
	"github.com/xkilldash9x/signup-cli/internal/mocks"
)

var (
	_ schemas.BrowserLauncher = (*mocks.MockBrowserLauncher)(nil)
	_ schemas.BrowserContext  = (*mocks.MockBrowserContext)(nil)
	_ schemas.Element         = (*mocks.MockElement)(nil)
	_ schemas.ResultSink      = (*mocks.MockResultSink)(nil)
	_ batch.Executor          = (*mocks.MockExecutor)(nil)
	_ config.Prompter         = (*mocks.MockPrompter)(nil)
)
