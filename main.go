package main

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/cloudgroundcontrol/livekit-roster/pkg/http/rest"
	"github.com/cloudgroundcontrol/livekit-roster/pkg/members"
	"github.com/cloudgroundcontrol/livekit-roster/pkg/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

func getEnvOrFail(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("%s not set", key)
	}
	return val
}

func main() {
	// Get env variables
	port := getEnvOrFail("APP_PORT")
	lkURL := getEnvOrFail("LIVEKIT_URL")
	lkAPIKey := getEnvOrFail("LIVEKIT_API_KEY")
	lkAPISecret := getEnvOrFail("LIVEKIT_API_SECRET")
	logLevel := os.Getenv("LOG_LEVEL")
	styleFile := os.Getenv("STYLE_FILE")
	levelExtID := os.Getenv("AUDIO_LEVEL_EXT_ID")

	// Get log verbosity
	var verbosity log.Lvl
	switch strings.ToLower(logLevel) {
	case "debug":
		verbosity = log.DEBUG
	case "info":
		verbosity = log.INFO
	case "warn":
		verbosity = log.WARN
	case "error":
		fallthrough
	default:
		verbosity = log.ERROR
	}
	log.SetLevel(verbosity)
	log.SetHeader("(${short_file}:${line}) ${time_rfc3339} ${level}: ")

	// Load animation style, defaults unless a file is given
	style := members.DefaultStyle()
	if styleFile != "" {
		var err error
		style, err = members.LoadStyle(styleFile)
		if err != nil {
			log.Fatal(err)
		}
	}

	// RTP audio-level header extension id, if the deployment negotiates a
	// non-default one
	extID := session.DefaultAudioLevelExtensionID
	if levelExtID != "" {
		parsed, err := strconv.ParseUint(levelExtID, 10, 8)
		if err != nil {
			log.Fatalf("invalid AUDIO_LEVEL_EXT_ID: %v", err)
		}
		extID = uint8(parsed)
	}

	// Initialise roster service
	service, err := session.NewService(lkURL, lkAPIKey, lkAPISecret, style, extID)
	if err != nil {
		log.Fatal(err)
	}
	defer service.Close()

	// Initialise roster controller
	controller := rest.NewRosterController(service)

	// Initialise server
	e := echo.New()

	// Attach middlewares
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "(${host}) ${time_rfc3339} ${level}: ${method} ${uri} ${status} ${error}\n",
	}))

	// Attach handlers
	e.GET("/health-check", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Attach roster handlers
	e.POST("/rooms/watch", controller.WatchRoom)
	e.POST("/rooms/unwatch", controller.UnwatchRoom)
	e.GET("/rooms", controller.ListRooms)
	e.GET("/rooms/:room/members", controller.GetMembers)
	e.GET("/rooms/:room/events", controller.StreamEvents)
	e.POST("/rooms/:room/invite", controller.InviteMember)
	e.POST("/rooms/:room/members/:identity/mute-toggle", controller.ToggleMute)
	e.DELETE("/rooms/:room/members/:identity", controller.KickMember)

	// Start server
	e.Logger.Fatal(e.Start(":" + port))
}
