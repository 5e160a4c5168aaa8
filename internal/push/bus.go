package push

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/caredesk/clinic-booking/internal/schedule"
)

// Bus fans room events out across API instances over redis pub/sub. Each
// room maps to one channel; the hub on every instance subscribes to the rooms
// it has members in and relays events to its local connections.
type Bus struct {
	client *redis.Client
	log    zerolog.Logger

	mu   sync.Mutex
	subs map[string]*busSub

	ctx    context.Context
	cancel context.CancelFunc
}

type busSub struct {
	pubsub   *redis.PubSub
	handlers map[int]func(roomEvent)
	nextID   int
}

func NewBus(client *redis.Client, log zerolog.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		client: client,
		log:    log,
		subs:   make(map[string]*busSub),
		ctx:    ctx,
		cancel: cancel,
	}
}

func roomChannel(doctorID uuid.UUID, date string) string {
	return fmt.Sprintf("room:%s:%s", doctorID.String(), date)
}

func (b *Bus) Publish(ctx context.Context, doctorID uuid.UUID, date string, ev roomEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal room event: %w", err)
	}
	if err := b.client.Publish(ctx, roomChannel(doctorID, date), data).Err(); err != nil {
		return fmt.Errorf("publish room event: %w", err)
	}
	return nil
}

// Subscribe registers a handler for a room's events and returns a cancel
// func. The underlying redis subscription is shared per room and closed when
// the last handler unsubscribes. Subscribe does not return until the server
// has acknowledged the subscription, so an event published after it returns
// is never lost.
func (b *Bus) Subscribe(doctorID uuid.UUID, date string, handler func(roomEvent)) (func(), error) {
	channel := roomChannel(doctorID, date)

	b.mu.Lock()
	sub, ok := b.subs[channel]
	if !ok {
		pubsub := b.client.Subscribe(b.ctx, channel)
		if _, err := pubsub.Receive(b.ctx); err != nil {
			b.mu.Unlock()
			_ = pubsub.Close()
			return nil, fmt.Errorf("subscribe room channel: %w", err)
		}
		sub = &busSub{
			pubsub:   pubsub,
			handlers: make(map[int]func(roomEvent)),
		}
		b.subs[channel] = sub
		go b.receive(channel, pubsub)
	}
	id := sub.nextID
	sub.nextID++
	sub.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		sub, ok := b.subs[channel]
		if !ok {
			return
		}
		delete(sub.handlers, id)
		if len(sub.handlers) == 0 {
			_ = sub.pubsub.Close()
			delete(b.subs, channel)
		}
	}, nil
}

func (b *Bus) receive(channel string, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev roomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Error().Err(err).Str("channel", channel).Msg("bad room event payload")
				continue
			}

			b.mu.Lock()
			sub, ok := b.subs[channel]
			var handlers []func(roomEvent)
			if ok {
				handlers = make([]func(roomEvent), 0, len(sub.handlers))
				for _, h := range sub.handlers {
					handlers = append(handlers, h)
				}
			}
			b.mu.Unlock()

			for _, h := range handlers {
				h(ev)
			}
		}
	}
}

// SlotStatusChanged publishes live capacity changes into the slot's room.
// Satisfies the appointment service's publisher; bookings and the expiry
// worker both feed rooms through it.
func (b *Bus) SlotStatusChanged(ctx context.Context, ref schedule.SlotRef, bookedCount, maxBookings int) error {
	return b.Publish(ctx, ref.DoctorID, ref.Date, roomEvent{
		Type:        TypeSlotStatusChanged,
		Slot:        ref.Start,
		BookedCount: bookedCount,
		MaxBookings: maxBookings,
	})
}

func (b *Bus) Close() {
	b.cancel()
	b.mu.Lock()
	defer b.mu.Unlock()
	for channel, sub := range b.subs {
		_ = sub.pubsub.Close()
		delete(b.subs, channel)
	}
}
