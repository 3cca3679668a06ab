package fx

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/kasuganosora/arenacore/cache"
)

// ChannelFor returns the pub/sub channel carrying a character's effect events.
func ChannelFor(charID int64) string {
	return "fx:" + strconv.FormatInt(charID, 10)
}

// PublishTimeout bounds one publish; events are emitted under the session lock.
const PublishTimeout = 250 * time.Millisecond

// PubSubBridge returns a Handler that publishes each event as JSON on the
// owning character's channel.
func PubSubBridge(ps cache.PubSub) Handler {
	return func(ctx context.Context, ev Event) error {
		if ev.CharID == 0 {
			return nil
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
		defer cancel()
		return ps.Publish(ctx, ChannelFor(ev.CharID), string(payload))
	}
}
