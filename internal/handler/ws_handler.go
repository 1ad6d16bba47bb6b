/*
Package handler provides the HTTP handler function for WebSocket connection
upgrading and initialization.

A fresh connection carries no identity and no subscriptions; it announces
both over the channel after the upgrade.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"bitcollab/internal/app/collab"
	"bitcollab/internal/pkg/errs"
	"bitcollab/internal/pkg/limiter"
	"bitcollab/internal/pkg/logx"
	"bitcollab/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := collab.NewClient(deps.Coordinator, conn)

		go client.WritePump()

		logx.Info("WebSocket connection established")

		client.ReadPump()
	}
}
