package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codesync-backend/internal/dto"
)

type fakeBackend struct {
	name string
	got  []Request
	err  error
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Execute(ctx context.Context, req Request) (*dto.ExecuteResponse, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	code := 0
	return &dto.ExecuteResponse{Language: req.Language, Version: req.Version, Run: dto.ExecutionStage{Stdout: f.name, Code: &code}}, nil
}

func TestDispatcherRoutesByLanguage(t *testing.T) {
	piston := &fakeBackend{name: BackendPiston}
	local := &fakeBackend{name: BackendLocal}
	d, err := NewDispatcher(DefaultRoutes(), piston, local)
	require.NoError(t, err)

	res, route, err := d.Execute(context.Background(), Request{Language: "Python", Source: "print(1)"})
	require.NoError(t, err)
	assert.Equal(t, BackendPiston, route.Backend)
	assert.Equal(t, "piston", res.Run.Stdout)
	require.Len(t, piston.got, 1)
	assert.Equal(t, Request{Language: "python", Version: "*", Source: "print(1)"}, piston.got[0])

	_, route, err = d.Execute(context.Background(), Request{Language: "javascript", Source: "1"})
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, route.Backend)
	assert.Len(t, local.got, 1)
}

func TestDispatcherRequestVersionWins(t *testing.T) {
	piston := &fakeBackend{name: BackendPiston}
	d, err := NewDispatcher(Routes{Languages: map[string]RouteConfig{"python": {Backend: BackendPiston, Version: "*"}}}, piston)
	require.NoError(t, err)

	_, route, err := d.Execute(context.Background(), Request{Language: "python", Version: "3.10.0"})
	require.NoError(t, err)
	assert.Equal(t, "3.10.0", route.Version)
	assert.Equal(t, "3.10.0", piston.got[0].Version)
}

func TestDispatcherUnsupportedLanguage(t *testing.T) {
	d, err := NewDispatcher(DefaultRoutes(), &fakeBackend{name: BackendPiston}, &fakeBackend{name: BackendLocal})
	require.NoError(t, err)

	_, _, err = d.Execute(context.Background(), Request{Language: "cobol"})
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, err = d.Resolve("  ")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestDispatcherFallback(t *testing.T) {
	routes := DefaultRoutes()
	routes.Fallback = BackendPiston
	d, err := NewDispatcher(routes, &fakeBackend{name: BackendPiston}, &fakeBackend{name: BackendLocal})
	require.NoError(t, err)

	route, err := d.Resolve("rust")
	require.NoError(t, err)
	assert.Equal(t, Route{Language: "rust", Backend: BackendPiston, Version: "*"}, route)
}

func TestDispatcherBackendFailureKeepsRoute(t *testing.T) {
	failure := &BackendError{Backend: BackendPiston, StatusCode: 502, Body: "bad gateway"}
	d, err := NewDispatcher(DefaultRoutes(), &fakeBackend{name: BackendPiston, err: failure}, &fakeBackend{name: BackendLocal})
	require.NoError(t, err)

	_, route, err := d.Execute(context.Background(), Request{Language: "java"})
	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "bad gateway", be.Body)
	assert.Equal(t, BackendPiston, route.Backend)
}

func TestNewDispatcherUnknownBackend(t *testing.T) {
	_, err := NewDispatcher(DefaultRoutes(), &fakeBackend{name: BackendLocal})
	assert.Error(t, err)

	_, err = NewDispatcher(Routes{Fallback: "docker"}, &fakeBackend{name: BackendLocal})
	assert.Error(t, err)
}

func TestDispatcherLanguagesSorted(t *testing.T) {
	d, err := NewDispatcher(DefaultRoutes(), &fakeBackend{name: BackendPiston}, &fakeBackend{name: BackendLocal})
	require.NoError(t, err)

	var names []string
	for _, r := range d.Languages() {
		names = append(names, r.Language)
	}
	assert.Equal(t, []string{"cpp", "java", "javascript", "python"}, names)
}

func TestBackendErrorMessage(t *testing.T) {
	assert.Equal(t, "piston backend: status 500", (&BackendError{Backend: "piston", StatusCode: 500}).Error())
	assert.Equal(t, "piston backend: boom", (&BackendError{Backend: "piston", Err: errors.New("boom")}).Error())
}
