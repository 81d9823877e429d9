package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshJob_ProductsDeduplicates(t *testing.T) {
	store := &fakeStore{popular: []string{"rice", "tomato", "milk", "eggs"}}
	job := NewRefreshJob(&recordingRefresher{}, store, nil, nil, RefreshSettings{Products: []string{"tomato", "", "bread"}, Popular: 3}, nil)

	assert.Equal(t, []string{"tomato", "bread", "rice", "milk"}, job.Products(context.Background()))
}

func TestRefreshJob_RunInProcess(t *testing.T) {
	r := &recordingRefresher{}
	job := NewRefreshJob(r, nil, nil, nil, RefreshSettings{Products: []string{"tomato", "rice"}}, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"tomato", "rice"}, r.keys)
}

func TestRefreshJob_RunEnqueues(t *testing.T) {
	r := &recordingRefresher{}
	q := &recordingQueue{}
	job := NewRefreshJob(r, nil, q, nil, RefreshSettings{Products: []string{"tomato", "rice"}}, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, r.keys)
	require.Len(t, q.msgs, 2)
	assert.Equal(t, JobRefreshProduct, q.msgs[0].msgType)
	p := q.msgs[1].payload.(RefreshPayload)
	assert.Equal(t, "rice", p.ProductKey)
	assert.NotEmpty(t, p.RunID)
}

func TestRefreshJob_AllFailed(t *testing.T) {
	job := NewRefreshJob(&recordingRefresher{err: errBoom}, nil, nil, nil, RefreshSettings{Products: []string{"tomato"}}, nil)
	assert.Error(t, job.Run(context.Background()))
}

func TestRefreshProductJob_Handle(t *testing.T) {
	r := &recordingRefresher{}
	job := NewRefreshProductJob(r, nil, nil)
	assert.Equal(t, JobRefreshProduct, job.Type())

	raw, err := json.Marshal(RefreshPayload{ProductKey: "milk", RunID: "r1"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), raw))
	assert.Equal(t, []string{"milk"}, r.keys)

	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{}`)))
	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`not json`)))
}
