package remote_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/carecall"
	httpadapter "github.com/aretw0/carecall/pkg/adapters/http"
	"github.com/aretw0/carecall/pkg/adapters/memory"
	"github.com/aretw0/carecall/pkg/adapters/remote"
	"github.com/aretw0/carecall/pkg/domain"
	"github.com/aretw0/carecall/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBackend serves a local carecall engine over the HTTP adapter.
func newBackend(t *testing.T) string {
	t.Helper()
	engine, err := carecall.New()
	require.NoError(t, err)
	srv, err := httpadapter.NewServer(engine, session.NewManager(memory.NewStore()))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestEngine_RemoteCarecallMatchesLocalScript(t *testing.T) {
	ctx := context.Background()
	local := carecall.MustNew()
	delegating := carecall.MustNew(carecall.WithResponder(remote.NewClient(newBackend(t))))

	localState, localReply, err := local.Start(ctx, "l1", "no_schedule")
	require.NoError(t, err)
	remoteState, remoteReply, err := delegating.Start(ctx, "r1", "no_schedule")
	require.NoError(t, err)

	assert.Equal(t, domain.BackendRemote, remoteState.Backend)
	assert.NotEmpty(t, remoteState.RemoteSessionID)
	assert.Equal(t, localReply.Message, remoteReply.Message, "start answers with the first step line on both backends")
	require.Len(t, remoteState.Messages, 1)

	_, localReply, err = local.Submit(ctx, localState, "hello there")
	require.NoError(t, err)
	remoteState, remoteReply, err = delegating.Submit(ctx, remoteState, "hello there")
	require.NoError(t, err)

	assert.Equal(t, domain.BackendRemote, remoteState.Backend)
	assert.Equal(t, localReply.Message, remoteReply.Message, "the remote script advances one step per turn")
}
