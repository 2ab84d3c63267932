package rest

import (
	"errors"
	"net/http"

	"github.com/cloudgroundcontrol/livekit-roster/pkg/session"
	"github.com/labstack/echo/v4"
)

type rosterController struct {
	session.Service
}

func NewRosterController(service session.Service) rosterController {
	return rosterController{service}
}

type WatchRoomRequest struct {
	Room string `json:"room"`
	Self string `json:"self"`
}

type UnwatchRoomRequest struct {
	Room string `json:"room"`
}

type InviteRequest struct {
	Identity string `json:"identity"`
}

var ErrEmptyFields = errors.New("one or more fields is empty")

func httpStatus(err error) int {
	if errors.Is(err, session.ErrRoomNotWatched) || errors.Is(err, session.ErrUnknownMember) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (rc *rosterController) WatchRoom(c echo.Context) error {
	data := new(WatchRoomRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Room == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	err := rc.Service.Watch(c.Request().Context(), session.WatchRequest{
		Room: data.Room,
		Self: data.Self,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.NoContent(http.StatusOK)
}

func (rc *rosterController) UnwatchRoom(c echo.Context) error {
	data := new(UnwatchRoomRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Room == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	if err := rc.Service.Unwatch(data.Room); err != nil {
		return echo.NewHTTPError(httpStatus(err), err)
	}
	return c.NoContent(http.StatusOK)
}

func (rc *rosterController) ListRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, rc.Service.Rooms())
}

func (rc *rosterController) GetMembers(c echo.Context) error {
	views, err := rc.Service.Snapshot(c.Param("room"))
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err)
	}
	return c.JSON(http.StatusOK, views)
}

func (rc *rosterController) InviteMember(c echo.Context) error {
	data := new(InviteRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Identity == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	if err := rc.Service.Invite(c.Param("room"), data.Identity); err != nil {
		return echo.NewHTTPError(httpStatus(err), err)
	}
	return c.NoContent(http.StatusOK)
}

func (rc *rosterController) ToggleMute(c echo.Context) error {
	err := rc.Service.ToggleMute(c.Param("room"), c.Param("identity"))
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err)
	}
	return c.NoContent(http.StatusOK)
}

func (rc *rosterController) KickMember(c echo.Context) error {
	err := rc.Service.Kick(c.Param("room"), c.Param("identity"))
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err)
	}
	return c.NoContent(http.StatusOK)
}
