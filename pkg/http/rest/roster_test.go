package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudgroundcontrol/livekit-roster/pkg/list"
	"github.com/cloudgroundcontrol/livekit-roster/pkg/members"
	"github.com/cloudgroundcontrol/livekit-roster/pkg/session"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	watched  []session.WatchRequest
	toggled  []string
	kicked   []string
	rooms    []string
	snapshot []members.RowView
	err      error
}

func (f *fakeService) Watch(ctx context.Context, req session.WatchRequest) error {
	f.watched = append(f.watched, req)
	return f.err
}

func (f *fakeService) Unwatch(room string) error { return f.err }

func (f *fakeService) Rooms() []string { return f.rooms }

func (f *fakeService) Snapshot(room string) ([]members.RowView, error) {
	return f.snapshot, f.err
}

func (f *fakeService) Invite(room string, identity string) error { return f.err }

func (f *fakeService) ToggleMute(room string, identity string) error {
	f.toggled = append(f.toggled, room+"/"+identity)
	return f.err
}

func (f *fakeService) Kick(room string, identity string) error {
	f.kicked = append(f.kicked, room+"/"+identity)
	return f.err
}

func (f *fakeService) Subscribe(room string) (<-chan list.Event, func(), error) {
	return nil, func() {}, f.err
}

func (f *fakeService) Close() {}

func newTestContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWatchRoom(t *testing.T) {
	svc := &fakeService{}
	rc := NewRosterController(svc)

	c, rec := newTestContext(http.MethodPost, "/rooms/watch", `{"room":"demo","self":"alice"}`)
	require.NoError(t, rc.WatchRoom(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []session.WatchRequest{{Room: "demo", Self: "alice"}}, svc.watched)
}

func TestWatchRoomRequiresRoom(t *testing.T) {
	rc := NewRosterController(&fakeService{})

	c, _ := newTestContext(http.MethodPost, "/rooms/watch", `{"self":"alice"}`)
	err := rc.WatchRoom(c)
	require.IsType(t, &echo.HTTPError{}, err)
	require.Equal(t, http.StatusBadRequest, err.(*echo.HTTPError).Code)
}

func TestGetMembersUnknownRoomIs404(t *testing.T) {
	rc := NewRosterController(&fakeService{err: session.ErrRoomNotWatched})

	c, _ := newTestContext(http.MethodGet, "/rooms/demo/members", "")
	c.SetParamNames("room")
	c.SetParamValues("demo")
	err := rc.GetMembers(c)
	require.IsType(t, &echo.HTTPError{}, err)
	require.Equal(t, http.StatusNotFound, err.(*echo.HTTPError).Code)
}

func TestGetMembers(t *testing.T) {
	svc := &fakeService{snapshot: []members.RowView{{Identity: "alice", State: "active"}}}
	rc := NewRosterController(svc)

	c, rec := newTestContext(http.MethodGet, "/rooms/demo/members", "")
	c.SetParamNames("room")
	c.SetParamValues("demo")
	require.NoError(t, rc.GetMembers(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"identity":"alice"`)
}

func TestToggleMute(t *testing.T) {
	svc := &fakeService{}
	rc := NewRosterController(svc)

	c, rec := newTestContext(http.MethodPost, "/rooms/demo/members/alice/mute-toggle", "")
	c.SetParamNames("room", "identity")
	c.SetParamValues("demo", "alice")
	require.NoError(t, rc.ToggleMute(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"demo/alice"}, svc.toggled)
}

func TestKickUnknownMemberIs404(t *testing.T) {
	rc := NewRosterController(&fakeService{err: session.ErrUnknownMember})

	c, _ := newTestContext(http.MethodDelete, "/rooms/demo/members/ghost", "")
	c.SetParamNames("room", "identity")
	c.SetParamValues("demo", "ghost")
	err := rc.KickMember(c)
	require.IsType(t, &echo.HTTPError{}, err)
	require.Equal(t, http.StatusNotFound, err.(*echo.HTTPError).Code)
}

func TestInviteRequiresIdentity(t *testing.T) {
	rc := NewRosterController(&fakeService{})

	c, _ := newTestContext(http.MethodPost, "/rooms/demo/invite", `{}`)
	c.SetParamNames("room")
	c.SetParamValues("demo")
	err := rc.InviteMember(c)
	require.IsType(t, &echo.HTTPError{}, err)
	require.Equal(t, http.StatusBadRequest, err.(*echo.HTTPError).Code)
}

func TestListRooms(t *testing.T) {
	rc := NewRosterController(&fakeService{rooms: []string{"demo"}})

	c, rec := newTestContext(http.MethodGet, "/rooms", "")
	require.NoError(t, rc.ListRooms(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "demo")
}
