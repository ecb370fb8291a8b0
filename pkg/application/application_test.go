package application

import (
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct{ key string }

func (c fakeController) Register(*mux.Router) {}
func (c fakeController) Key() string          { return c.key }

type fakeService struct{ name string }

func TestApplication_Registry(t *testing.T) {
	app := New(&ApplicationOptions{})
	require.NotNil(t, app.EventPublisher())
	require.NotNil(t, app.Logger())

	app.RegisterControllers(fakeController{"/b"}, fakeController{"/a"}, fakeController{"/b"})
	keys := []string{}
	for _, c := range app.Controllers() {
		keys = append(keys, c.Key())
	}
	assert.Equal(t, []string{"/b", "/a"}, keys)

	svc := &fakeService{name: "x"}
	app.RegisterServices(svc)
	got := app.Service(fakeService{}).(*fakeService)
	assert.Same(t, svc, got)
	assert.Panics(t, func() { app.Service(struct{}{}) })

	app.RegisterMiddleware(func(next http.Handler) http.Handler { return next })
	assert.Len(t, app.Middleware(), 1)
}

func TestApplication_ShutdownRunsInReverse(t *testing.T) {
	app := New(&ApplicationOptions{})
	var order []int
	app.OnShutdown(func() { order = append(order, 1) })
	app.OnShutdown(func() { order = append(order, 2) })
	app.Shutdown()
	app.Shutdown()
	assert.Equal(t, []int{2, 1}, order)
}
