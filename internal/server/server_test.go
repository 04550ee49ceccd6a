package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RyanW02/chainsocial/internal/config"
	"github.com/RyanW02/chainsocial/pkg/broadcast"
	"github.com/RyanW02/chainsocial/pkg/feed"
	"github.com/RyanW02/chainsocial/pkg/journal"
	"github.com/RyanW02/chainsocial/pkg/ledger/ledgertest"
	"github.com/RyanW02/chainsocial/pkg/media"
	"github.com/RyanW02/chainsocial/pkg/socialclient"
	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const alice social.Identity = "A11CE0"

type fixture struct {
	server *Server
	client *socialclient.Client
	ledger *ledgertest.Ledger
}

func newFixture(t *testing.T) *fixture {
	cfg := config.Default()
	cfg.Production = true
	cfg.Client.KeyFile = filepath.Join(t.TempDir(), "key.txt")

	l := ledgertest.New()
	l.SeedUser(alice, "alice", "")

	client := socialclient.New(cfg, zap.NewNop(), l, journal.NewNoopJournal())
	t.Cleanup(client.Disconnect)

	return &fixture{
		server: NewServer(cfg, zap.NewNop(), client, broadcast.NewErrorWaitChannel()),
		client: client,
		ledger: l,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		marshalled, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(marshalled)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(recorder, req)
	return recorder
}

// connect starts a session, and registers the viewer on the ledger.
func (f *fixture) connect(t *testing.T) social.Identity {
	res := f.do(t, http.MethodPost, "/session", connectRequest{Generate: true})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	active, err := f.client.Active()
	require.NoError(t, err)

	viewer := active.Session.Identity()
	f.ledger.SeedUser(viewer, "viewer", "")
	return viewer
}

func decode[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	var value T
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &value), res.Body.String())
	return value
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	status := decode[map[string]any](t, f.do(t, http.MethodGet, "/status", nil))
	require.Equal(t, false, status["connected"])

	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/feed", nil).Code)

	// No key file, and not asked to create one
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/session", nil).Code)

	res := f.do(t, http.MethodPost, "/session", connectRequest{Generate: true})
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, true, decode[map[string]any](t, res)["key_created"])

	status = decode[map[string]any](t, f.do(t, http.MethodGet, "/status", nil))
	require.Equal(t, true, status["connected"])

	// The key file is reused
	res = f.do(t, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, false, decode[map[string]any](t, res)["key_created"])

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/session", nil).Code)
	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/feed", nil).Code)
}

func TestFeed(t *testing.T) {
	f := newFixture(t)
	viewer := f.connect(t)

	f.ledger.SeedFollow(viewer, alice)
	post := f.ledger.SeedPost(alice, "hello", "")

	res := f.do(t, http.MethodGet, "/feed", nil)
	require.Equal(t, http.StatusOK, res.Code)

	body := decode[feed.Feed](t, res)
	require.Equal(t, 1, body.Sources)
	require.Len(t, body.Posts, 1)
	require.Equal(t, post.Key().String(), body.Posts[0].Key)
}

func TestReadErrorsAreMapped(t *testing.T) {
	f := newFixture(t)
	viewer := f.connect(t)

	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/profiles/DEADBEEF", nil).Code)
	require.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/posts/"+alice.String()+"/abc/comments", nil).Code)
	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/posts/"+alice.String()+"/7/likers", nil).Code)

	f.ledger.SetReadHook(ledgertest.FailWith(ledgertest.OpGetFollowing, viewer.String(), errors.New("timeout")))
	require.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/feed", nil).Code)
}

func TestLikeConflicts(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	post := f.ledger.SeedPost(alice, "hello", "")
	path := "/posts/" + alice.String() + "/1/like"

	res := f.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusAccepted, res.Code)

	body := decode[mutationResponse](t, res)
	require.Equal(t, "like", body.Kind)
	require.Equal(t, "pending", body.State)
	require.Equal(t, "like:"+post.Key().String(), body.Key)
	require.NotEmpty(t, body.TxHash)

	require.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, path, nil).Code)
	require.Equal(t, http.StatusConflict, f.do(t, http.MethodDelete, path, nil).Code)

	f.ledger.ConfirmAll()

	active, err := f.client.Active()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(active.Mutations.InFlight()) == 0
	}, time.Second, time.Millisecond)

	f.ledger.SetAutoConfirm(true)
	res = f.do(t, http.MethodDelete, path+"?wait=true", nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	require.Equal(t, "confirmed", decode[mutationResponse](t, res).State)
}

func TestRejectedWrite(t *testing.T) {
	f := newFixture(t)
	viewer := f.connect(t)

	f.ledger.SetAutoConfirm(true)
	f.ledger.SeedPost(alice, "hello", "")
	f.ledger.SeedFollow(viewer, alice)

	// Already following
	res := f.do(t, http.MethodPost, "/follows/"+alice.String()+"?wait=true", nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code, res.Body.String())
}

func TestValidationErrors(t *testing.T) {
	f := newFixture(t)
	viewer := f.connect(t)
	f.ledger.SeedPost(alice, "hello", "")

	res := f.do(t, http.MethodPost, "/posts/"+alice.String()+"/1/comments", commentRequest{Text: " "})
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodPost, "/follows/"+viewer.String(), nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodDelete, "/posts/"+alice.String()+"/1", nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodPost, "/posts", createPostRequest{Content: "hi", Media: "ftp://nope"})
	require.Equal(t, http.StatusBadRequest, res.Code)

	require.Empty(t, f.ledger.Writes())
}

func TestCreatePostWithMedia(t *testing.T) {
	f := newFixture(t)
	viewer := f.connect(t)
	f.ledger.SetAutoConfirm(true)

	id, err := media.ContentID([]byte("a picture"))
	require.NoError(t, err)

	res := f.do(t, http.MethodPost, "/posts?wait=true", createPostRequest{Content: "look", Media: id.String()})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = f.do(t, http.MethodGet, "/profiles/"+viewer.String(), nil)
	require.Equal(t, http.StatusOK, res.Code)

	page := decode[feed.ProfilePage](t, res)
	require.Len(t, page.Posts, 1)
	require.Equal(t, media.DefaultGatewayPrefix+id.String(), page.Posts[0].MediaURI)
	require.EqualValues(t, 1, page.Profile.PostCount)
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.ledger.SeedPost(alice, "hello", "")

	httpServer := httptest.NewServer(f.server.Handler())
	defer httpServer.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(httpServer.URL, "http")+"/stream", nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func() websocketMessage {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))

		var message websocketMessage
		require.NoError(t, ws.ReadJSON(&message))
		return message
	}

	require.Equal(t, wsMessageTypeHello, read().Type)

	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/posts/"+alice.String()+"/1/like", nil).Code)

	message := read()
	require.Equal(t, wsMessageTypeChange, message.Type)
	require.JSONEq(t, `{"lane":"likes","key":"`+alice.String()+`/1"}`, string(message.Payload))

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/session", nil).Code)

	for {
		message := read()
		if message.Type == wsMessageTypeSessionEnded {
			break
		}
	}
}

func TestStreamRequiresSession(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/stream", nil).Code)
}
