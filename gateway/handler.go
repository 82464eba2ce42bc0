package gateway

import (
	"chat-gateway/auth"
	"chat-gateway/contract"
	"chat-gateway/domain/chat"
	"chat-gateway/domain/event"
	"chat-gateway/domain/search"
	"chat-gateway/errors"
	index "chat-gateway/infrastructure/search"
	"chat-gateway/runtime/workers"
	"chat-gateway/services"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

const (
	joinFailed    = "Unable to join room"
	sendFailed    = "Send failed"
	readFailed    = "Unable to mark messages as read"
	historyFailed = "Unable to load history"
	searchFailed  = "Search failed"
)

// Handler runs the per-event state machine of a connection.
// Storage calls are bound to the server context, never to the connection:
// a client hanging up mid-send still gets its message committed.
type Handler struct {
	ctx              context.Context
	log              *slog.Logger
	registry         contract.IPresenceRegistry
	resolver         services.IRoomResolver
	messages         services.IMessageService
	reads            services.IReadService
	index            index.IIndex
	events           chan<- event.DomainEvent
	operationTimeout time.Duration
}

// NewHandler builds a Handler. idx may be nil, chat:search then answers with an error.
func NewHandler(ctx context.Context, log *slog.Logger, registry contract.IPresenceRegistry,
	resolver services.IRoomResolver, messages services.IMessageService, reads services.IReadService,
	idx index.IIndex, events chan<- event.DomainEvent, operationTimeout time.Duration) *Handler {
	return &Handler{
		ctx:              ctx,
		log:              log,
		registry:         registry,
		resolver:         resolver,
		messages:         messages,
		reads:            reads,
		index:            idx,
		events:           events,
		operationTimeout: operationTimeout,
	}
}

func (h *Handler) operation() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.ctx, h.operationTimeout)
}

// Dispatch decodes one client frame and routes it. Malformed frames and
// unknown events are logged and dropped.
func (h *Handler) Dispatch(session *Session, frame []byte) {
	in, err := event.DecodeInbound(frame)
	if err != nil {
		h.log.Debug("Dropping malformed frame", "connection_id", session.ConnectionID, "error", err)
		return
	}

	switch in.Event {
	case event.RoomJoin, event.RoomLeave, event.TypingStart, event.TypingStop:
		room, err := event.DecodeRoom(in.Data)
		if err != nil {
			h.dropped(session, in.Event, err)
			return
		}
		switch in.Event {
		case event.RoomJoin:
			h.Join(session, room)
		case event.RoomLeave:
			h.Leave(session, room)
		case event.TypingStart:
			h.Typing(session, room, true)
		case event.TypingStop:
			h.Typing(session, room, false)
		}
	case event.ChatSend:
		var payload event.SendPayload
		if err := json.Unmarshal(in.Data, &payload); err != nil {
			h.emit(session, event.ChatError, event.ErrorPayload{Message: errors.ToWireMessage(errors.ErrValidation, sendFailed)})
			h.dropped(session, in.Event, err)
			return
		}
		h.Send(session, payload)
	case event.ChatMarkDelivered, event.ChatMarkRead:
		var receipt event.ReceiptRequest
		if err := json.Unmarshal(in.Data, &receipt); err != nil {
			h.dropped(session, in.Event, err)
			return
		}
		if in.Event == event.ChatMarkRead {
			h.MarkRead(session, receipt)
		} else {
			h.MarkDelivered(session, receipt)
		}
	case event.PresencePing:
		h.Ping(session)
	case event.ChatHistory:
		var req event.HistoryRequest
		if err := json.Unmarshal(in.Data, &req); err != nil {
			h.dropped(session, in.Event, err)
			return
		}
		h.History(session, req)
	case event.ChatSearch:
		var req event.SearchRequest
		if err := json.Unmarshal(in.Data, &req); err != nil {
			h.dropped(session, in.Event, err)
			return
		}
		h.Search(session, req)
	default:
		h.log.Debug("Ignoring frame", "connection_id", session.ConnectionID, "event", in.Event, "error", errors.ErrUnknownEvent)
	}
}

func (h *Handler) dropped(session *Session, name event.Name, err error) {
	h.log.Debug("Dropping frame", "connection_id", session.ConnectionID, "event", name, "error", err)
}

// Join resolves the room, tracks presence and acknowledges.
// The joiner learns whether somebody was already there, the others learn
// that somebody now is.
func (h *Handler) Join(session *Session, room string) {
	room = strings.TrimSpace(room)
	ctx, cancel := h.operation()
	defer cancel()

	descriptor, err := h.resolver.Resolve(ctx, room, session.UserID)
	if err != nil {
		h.log.Debug("Join refused", "room", room, "user_id", session.UserID, "error", err)
		h.emit(session, event.RoomError, event.ErrorPayload{Room: room, Message: errors.ToWireMessage(err, joinFailed)})
		return
	}
	if !session.Remember(room, descriptor) {
		return
	}

	hadOthers := h.registry.HasOthers(room, session.ConnectionID)
	h.registry.TrackJoin(room, session.ConnectionID)
	if session.IsClosed() {
		// Disconnected while resolving: Disconnect may already have swept this room.
		h.registry.TrackLeave(room, session.ConnectionID)
		return
	}

	h.registry.BroadcastPresence(ctx, room, true, session.ConnectionID)
	h.emit(session, event.PresenceUpdate, hadOthers)
	h.emit(session, event.RoomJoined, event.RoomJoinedPayload{Room: room, ConversationID: descriptor.ConversationID})
}

func (h *Handler) Leave(session *Session, room string) {
	room = strings.TrimSpace(room)
	if !session.Forget(room) {
		h.emit(session, event.RoomLeft, event.RoomLeftPayload{Room: room})
		return
	}
	h.registry.TrackLeave(room, session.ConnectionID)

	ctx, cancel := h.operation()
	defer cancel()
	h.registry.BroadcastPresence(ctx, room, false, session.ConnectionID)
	h.emit(session, event.RoomLeft, event.RoomLeftPayload{Room: room})
}

// Send persists a message then fans the stored record out to the room.
// A retried id is answered the same way, clients dedupe on id.
func (h *Handler) Send(session *Session, payload event.SendPayload) {
	if session.UserID == "" {
		return
	}
	room := strings.TrimSpace(payload.Room)
	if err := auth.Validate(payload); err != nil {
		h.emit(session, event.ChatError, event.ErrorPayload{Room: room, Message: errors.ToWireMessage(err, sendFailed)})
		return
	}
	if payload.SenderID != "" && payload.SenderID != session.UserID {
		h.log.Debug("Ignoring client senderId", "sender_id", payload.SenderID, "user_id", session.UserID)
	}

	ctx, cancel := h.operation()
	defer cancel()

	descriptor, err := h.descriptor(ctx, session, room)
	if err != nil {
		h.sendFailed(session, room, err)
		return
	}

	result, err := h.messages.Persist(ctx, chat.PersistMessageCommand{
		ConversationID: descriptor.ConversationID,
		MessageID:      payload.ID,
		SenderID:       session.UserID,
		Text:           payload.Text,
		CreatedAt:      payload.CreatedAt.Ptr(),
		Attachments:    lo.Map(payload.Attachments, func(a event.AttachmentPayload, _ int) chat.Attachment { return a.ToAttachment() }),
	})
	if err != nil {
		h.sendFailed(session, room, err)
		return
	}

	out := event.Outbound{Event: event.ChatMessage, Data: event.ToMessagePayload(room, result.Message)}
	h.registry.Broadcast(ctx, room, out, session.ConnectionID)
	h.emit(session, out.Event, out.Data)
	h.emit(session, event.ChatDelivered, []string{result.Message.ID})

	workers.Publish(h.log, h.events, event.MessagePersisted{Room: room, Message: result.Message, Duplicate: result.Duplicate})
}

func (h *Handler) sendFailed(session *Session, room string, err error) {
	if errors.Is(err, errors.ErrUnauthorized) {
		return
	}
	h.log.Warn("Send failed", "room", room, "user_id", session.UserID, "error", err)
	h.emit(session, event.ChatError, event.ErrorPayload{Room: room, Message: errors.ToWireMessage(err, sendFailed)})
}

// descriptor prefers the room cached at join time and resolves otherwise.
func (h *Handler) descriptor(ctx context.Context, session *Session, room string) (chat.ConversationDescriptor, error) {
	if descriptor, ok := session.Descriptor(room); ok {
		return descriptor, nil
	}
	return h.resolver.Resolve(ctx, room, session.UserID)
}

// MarkDelivered relays a delivery acknowledgement. Nothing is stored.
func (h *Handler) MarkDelivered(session *Session, receipt event.ReceiptRequest) {
	if len(receipt.IDs) == 0 {
		return
	}
	rooms := session.JoinedRooms()
	if receipt.Room != nil {
		rooms = []string{*receipt.Room}
	}

	ctx, cancel := h.operation()
	defer cancel()
	for _, room := range rooms {
		h.registry.Broadcast(ctx, room, event.Outbound{Event: event.ChatDelivered, Data: receipt.IDs}, session.ConnectionID)
	}
}

// MarkRead stores read receipts and tells the other members of the rooms concerned.
func (h *Handler) MarkRead(session *Session, receipt event.ReceiptRequest) {
	if len(receipt.IDs) == 0 {
		return
	}
	ctx, cancel := h.operation()
	defer cancel()

	result, err := h.reads.MarkRead(ctx, session.UserID, receipt.IDs)
	if err != nil {
		h.log.Warn("Mark read failed", "user_id", session.UserID, "error", err)
		h.emit(session, event.ChatError, event.ErrorPayload{Room: lo.FromPtr(receipt.Room), Message: errors.ToWireMessage(err, readFailed)})
		return
	}

	if receipt.Room != nil {
		ids := lo.Flatten(lo.Map(result.ConversationIDs, func(id string, _ int) []string { return result.MessageIDsByConversation[id] }))
		if len(ids) > 0 {
			h.registry.Broadcast(ctx, *receipt.Room, event.Outbound{Event: event.ChatRead, Data: ids}, session.ConnectionID)
		}
	} else {
		for conversationID, rooms := range session.RoomsFor(result.ConversationIDs) {
			ids := result.MessageIDsByConversation[conversationID]
			for _, room := range rooms {
				h.registry.Broadcast(ctx, room, event.Outbound{Event: event.ChatRead, Data: ids}, session.ConnectionID)
			}
		}
	}

	now := time.Now().UTC()
	for _, conversationID := range result.ConversationIDs {
		workers.Publish(h.log, h.events, event.MessagesRead{
			UserID:       session.UserID,
			Conversation: conversationID,
			MessageIDs:   result.MessageIDsByConversation[conversationID],
			At:           now,
		})
	}
}

// Typing is best effort: nothing is reported back to the sender.
// The room is resolved like a send so a connection that never joined can still type.
func (h *Handler) Typing(session *Session, room string, typing bool) {
	room = strings.TrimSpace(room)
	if room == "" {
		return
	}
	ctx, cancel := h.operation()
	defer cancel()
	if _, err := h.descriptor(ctx, session, room); err != nil {
		h.log.Debug("Typing dropped", "room", room, "user_id", session.UserID, "error", err)
		return
	}
	h.registry.Broadcast(ctx, room, event.Outbound{Event: event.TypingUpdate, Data: event.TypingPayload{Room: room, Typing: typing}}, session.ConnectionID)
}

func (h *Handler) Ping(session *Session) {
	ctx, cancel := h.operation()
	defer cancel()
	for _, room := range session.JoinedRooms() {
		h.registry.BroadcastPresence(ctx, room, true, session.ConnectionID)
	}
}

func (h *Handler) History(session *Session, req event.HistoryRequest) {
	room := strings.TrimSpace(req.Room)
	if err := auth.Validate(req); err != nil {
		h.emit(session, event.ChatError, event.ErrorPayload{Room: room, Message: errors.ToWireMessage(err, historyFailed)})
		return
	}
	ctx, cancel := h.operation()
	defer cancel()

	descriptor, err := h.descriptor(ctx, session, room)
	if err != nil {
		h.emit(session, event.ChatError, event.ErrorPayload{Room: room, Message: errors.ToWireMessage(err, historyFailed)})
		return
	}
	page, err := h.messages.History(ctx, descriptor.ConversationID, req.Cursor, req.Limit)
	if err != nil {
		h.log.Warn("History failed", "room", room, "error", err)
		h.emit(session, event.ChatError, event.ErrorPayload{Room: room, Message: errors.ToWireMessage(err, historyFailed)})
		return
	}
	h.emit(session, event.ChatHistory, event.HistoryPayload{
		Room:           room,
		ConversationID: descriptor.ConversationID,
		Messages:       toPayloads(room, page.Messages),
		Cursor:         page.Cursor,
	})
}

func (h *Handler) Search(session *Session, req event.SearchRequest) {
	room := strings.TrimSpace(req.Room)
	if h.index == nil {
		h.emit(session, event.ChatError, event.ErrorPayload{Room: room, Message: errors.ToWireMessage(errors.ErrSearchDisabled, searchFailed)})
		return
	}
	if err := auth.Validate(req); err != nil {
		h.emit(session, event.ChatError, event.ErrorPayload{Room: room, Message: errors.ToWireMessage(err, searchFailed)})
		return
	}
	ctx, cancel := h.operation()
	defer cancel()

	descriptor, err := h.descriptor(ctx, session, room)
	if err != nil {
		h.emit(session, event.ChatError, event.ErrorPayload{Room: room, Message: errors.ToWireMessage(err, searchFailed)})
		return
	}
	query := search.NewSearchQuery(req.Query, descriptor.ConversationID, req.Limit)
	if query.IsEmpty() {
		h.emit(session, event.ChatError, event.ErrorPayload{Room: room, Message: errors.ToWireMessage(errors.ErrValidation, searchFailed)})
		return
	}

	messages, err := h.searchMessages(ctx, query)
	if err != nil {
		h.log.Warn("Search failed", "room", room, "error", err)
		h.emit(session, event.ChatError, event.ErrorPayload{Room: room, Message: errors.ToWireMessage(err, searchFailed)})
		return
	}
	h.emit(session, event.ChatSearchResults, event.SearchResultsPayload{Room: room, Query: req.Query, Messages: toPayloads(room, messages)})
}

func (h *Handler) searchMessages(ctx context.Context, query search.Query) ([]chat.Message, error) {
	ids, err := h.index.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return h.messages.Get(ctx, ids)
}

// Disconnect drops the connection from every room it joined and tells the
// remaining members. It runs whatever state the session was left in.
func (h *Handler) Disconnect(session *Session) {
	rooms := session.Close()
	h.registry.Detach(session.ConnectionID)

	ctx, cancel := h.operation()
	defer cancel()
	for _, room := range rooms {
		h.registry.TrackLeave(room, session.ConnectionID)
		h.registry.BroadcastPresence(ctx, room, false, session.ConnectionID)
	}
	h.log.Debug("Session closed", "connection_id", session.ConnectionID, "user_id", session.UserID, "rooms", len(rooms))
}

// emit answers the connection itself. A vanished peer is not an error here.
func (h *Handler) emit(session *Session, name event.Name, data any) {
	ctx, cancel := h.operation()
	defer cancel()
	if err := h.registry.EmitTo(ctx, session.ConnectionID, event.Outbound{Event: name, Data: data}); err != nil {
		h.log.Debug("Emit skipped", "connection_id", session.ConnectionID, "event", name, "error", err)
	}
}

func toPayloads(room string, messages []chat.Message) []event.MessagePayload {
	return lo.Map(messages, func(m chat.Message, _ int) event.MessagePayload { return event.ToMessagePayload(room, m) })
}
