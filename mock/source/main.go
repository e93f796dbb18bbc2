// Command source is a local stand-in for an embed-based stream site. It
// serves the embed -> rcp -> prorcp -> HLS chain the vidsrc provider walks.
//
// Point the provider at it with:
//
//	APP_PROVIDERS_VIDSRC_BASE_URL=http://localhost:8090
//	APP_PROVIDERS_VIDSRC_DEFAULT_HOP_BASE=http://localhost:8090
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const defaultAddr = ":8090"

// servers lists the backends every embed page advertises. h2 never answers
// in time and h3 skips the prorcp hop.
var servers = []struct {
	Hash  string
	Label string
}{
	{"h1", "CloudStream Pro"},
	{"h2", "Slow Mirror"},
	{"h3", "Direct"},
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	addr := os.Getenv("MOCK_ADDR")
	if addr == "" {
		addr = defaultAddr
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(func(c *fiber.Ctx) error {
		// Simulate network latency (30-120ms)
		time.Sleep(time.Duration(30+time.Now().UnixNano()%90) * time.Millisecond)
		err := c.Next()
		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("referer", c.Get(fiber.HeaderReferer)),
			zap.Int("status", c.Response().StatusCode()),
		)

		return err
	})

	app.Get("/embed/movie/:id", func(c *fiber.Ctx) error {
		return embed(c, "Mock Movie "+c.Params("id"))
	})
	app.Get("/embed/tv/:id/:episode", func(c *fiber.Ctx) error {
		return embed(c, fmt.Sprintf("Mock Show %s %s", c.Params("id"), c.Params("episode")))
	})

	app.Get("/rcp/:hash", func(c *fiber.Ctx) error {
		switch c.Params("hash") {
		case "h1":
			return script(c, "src: '/prorcp/h1-token'")
		case "h2":
			time.Sleep(30 * time.Second)
			return script(c, "src: '/prorcp/h2-token'")
		case "h3":
			return script(c, "src: '"+c.BaseURL()+"/hls/h3/master.m3u8'")
		default:
			return fiber.ErrNotFound
		}
	})

	app.Get("/prorcp/:token", func(c *fiber.Ctx) error {
		return script(c, "var player = new Playerjs({id: 'player', file: '/hls/"+c.Params("token")+"/master.m3u8'});")
	})

	app.Get("/hls/:id/master.m3u8", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/vnd.apple.mpegurl")
		return c.SendString(master)
	})
	app.Get("/hls/:id/:rendition", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/vnd.apple.mpegurl")
		return c.SendString(media)
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	logger.Info("mock source running", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.Fatal("mock source stopped", zap.Error(err))
	}
}

func embed(c *fiber.Ctx, title string) error {
	list := ""
	for _, s := range servers {
		list += fmt.Sprintf(`<div class="server" data-hash="%s">%s</div>`, s.Hash, s.Label)
	}

	c.Type("html")

	return c.SendString(fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>%s</title></head>
<body>
<div class="serversList">%s</div>
<iframe id="player_iframe" src="%s/rcp/%s" allowfullscreen></iframe>
</body></html>`, title, list, c.BaseURL(), servers[0].Hash))
}

func script(c *fiber.Ctx, body string) error {
	c.Type("html")

	return c.SendString("<html><body><script>" + body + "</script></body></html>")
}

const master = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
360.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720
720.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080
1080.m3u8
`

const media = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXTINF:10.0,
segment0.ts
#EXT-X-ENDLIST
`
