package gateway

import (
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/bridge"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/gateway/websocket"
)

// ActivityObserver publishes bridge activity on hub, keyed by session.
func ActivityObserver(hub *websocket.Hub) bridge.Observer {
	return bridge.ObserverFunc(func(a bridge.Activity) {
		_ = hub.BroadcastTyped(websocket.TypeActivity, a.SessionKey, a)
	})
}
