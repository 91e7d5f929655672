package client

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/jobgate/scheduler/domain"
	"github.com/twitter/jobgate/scheduler/status"
)

func TestGetStatus(t *testing.T) {
	snap := &domain.StatusSnapshot{
		PoolSize: 3,
		Jobs: []domain.JobStatus{
			{ID: "a", State: domain.Running},
			{ID: "b", State: domain.Queued},
		},
	}
	srv := httptest.NewServer(status.Handler(func() *domain.StatusSnapshot { return snap }, nil))
	defer srv.Close()

	c := NewTestStatusClient(srv.URL)
	got, err := c.GetStatus("")
	require.NoError(t, err)
	assert.Equal(t, 3, got.PoolSize)
	assert.Len(t, got.Jobs, 2)

	got, err = c.GetStatus("queued")
	require.NoError(t, err)
	require.Len(t, got.Jobs, 1)
	assert.Equal(t, "b", got.Jobs[0].ID)
}

func TestGetStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "state filter not recognized", http.StatusBadRequest)
	}))
	c := NewTestStatusClient(srv.URL)
	_, err := c.GetStatus("")
	assert.Contains(t, err.Error(), "state filter not recognized")

	srv.Close()
	_, err = c.GetStatus("")
	assert.Error(t, err)
}

func TestNewStatusClientAddr(t *testing.T) {
	assert.Equal(t, "http://localhost:9091", NewStatusClient("localhost:9091", nil).addr)
	assert.Equal(t, "https://h:1", NewStatusClient("https://h:1/", nil).addr)
}
