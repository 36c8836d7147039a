package gitx_test

import (
	"context"
	"errors"
	"strings"
)

// mockRunner implements gitx.Runner for testing. Responses are keyed by
// "dir:args-joined-by-space"; an unmatched key returns ("", nil).
type mockRunner struct {
	Responses map[string]mockResponse
}

type mockResponse struct {
	Output string
	Err    error
}

func (m *mockRunner) Run(_ context.Context, dir string, args ...string) (string, error) {
	key := dir + ":" + strings.Join(args, " ")
	if resp, ok := m.Responses[key]; ok {
		return resp.Output, resp.Err
	}
	return "", nil
}

var errMockCommand = errors.New("mock command failed")
