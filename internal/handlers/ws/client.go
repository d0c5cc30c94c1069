package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridhall/bingo/internal/services/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// client is one websocket connection bound to a session subscription
type client struct {
	handler   *Handler
	conn      *websocket.Conn
	sessionID string
	userID    string

	send chan any
	done chan struct{}

	closeOnce sync.Once
	cancelSub func()
}

func newClient(h *Handler, conn *websocket.Conn, sessionID, userID string, cancelSub func()) *client {
	return &client{
		handler:   h,
		conn:      conn,
		sessionID: sessionID,
		userID:    userID,
		send:      make(chan any, 64),
		done:      make(chan struct{}),
		cancelSub: cancelSub,
	}
}

// enqueue hands a frame to the write pump, giving up when the client is gone
func (c *client) enqueue(frame any) bool {
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	}
}

// close tears the client down exactly once. The subscription is released and
// the departure is recorded so the seat does not linger on a dead connection.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancelSub()
		c.conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		_, err := c.handler.sessionService.LeaveSession(ctx, &session.LeaveSessionInput{
			SessionID: c.sessionID,
			UserID:    c.userID,
		})
		if err != nil && !errors.Is(err, session.ErrNotAuthorized) && !errors.Is(err, session.ErrSessionNotFound) {
			log.Printf("Failed to record departure for %s: %v", c.userID, err)
		}
	})
}

// readPump reads inbound frames and dispatches them until the connection
// dies. Runs as the connection's request goroutine.
func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Unexpected close from %s: %v", c.userID, err)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.enqueue(&ResultFrame{
				Type:  frameTypeResult,
				OK:    false,
				Error: "malformed frame",
			})
			continue
		}

		c.enqueue(c.dispatch(&frame))
	}
}

// writePump serializes every outbound frame and keeps the connection alive
// with pings
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// dispatch maps one inbound frame to one service call and shapes the result
func (c *client) dispatch(frame *InboundFrame) *ResultFrame {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	result := &ResultFrame{
		Type: frameTypeResult,
		Ref:  frame.Ref,
	}

	switch frame.Type {
	case frameTypePropose:
		out, err := c.handler.sessionService.ProposeMutation(ctx, &session.ProposeMutationInput{
			SessionID:       c.sessionID,
			PlayerID:        c.userID,
			Position:        frame.Position,
			ExpectedVersion: frame.ExpectedVersion,
			Action:          session.MutationAction(frame.Action),
		})
		if err != nil {
			result.Error = err.Error()
			// A conflicted proposal still carries the authoritative cell so
			// the client can reconcile and retry.
			if errors.Is(err, session.ErrVersionConflict) && out != nil {
				result.Cell = out.Cell
			}
			return result
		}
		result.OK = true
		result.Cell = out.Cell
		result.Event = out.Event
		result.Win = out.Win

	case frameTypeRequestJoin:
		out, err := c.handler.sessionService.RequestJoin(ctx, &session.RequestJoinInput{
			SessionID: c.sessionID,
			UserID:    c.userID,
			Color:     frame.Color,
			Team:      frame.Team,
			Spectator: frame.Spectator,
		})
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.OK = true
		result.Status = string(out.Status)
		result.Entry = out.Entry
		result.Player = out.Player

	case frameTypeApproveJoin:
		out, err := c.handler.sessionService.ApproveJoin(ctx, &session.ApproveJoinInput{
			SessionID: c.sessionID,
			EntryID:   frame.EntryID,
			HostID:    c.userID,
		})
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.OK = true
		result.Entry = out.Entry
		result.Player = out.Player

	case frameTypeRejectJoin:
		out, err := c.handler.sessionService.RejectJoin(ctx, &session.RejectJoinInput{
			SessionID: c.sessionID,
			EntryID:   frame.EntryID,
			HostID:    c.userID,
		})
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.OK = true
		result.Entry = out.Entry

	case frameTypeLeave:
		out, err := c.handler.sessionService.LeaveSession(ctx, &session.LeaveSessionInput{
			SessionID: c.sessionID,
			UserID:    c.userID,
		})
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.OK = true
		result.Player = out.Player

	case frameTypeStart:
		_, err := c.handler.sessionService.StartSession(ctx, &session.StartSessionInput{
			SessionID: c.sessionID,
			HostID:    c.userID,
		})
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.OK = true

	case frameTypeEnd:
		_, err := c.handler.sessionService.EndSession(ctx, &session.EndSessionInput{
			SessionID: c.sessionID,
			HostID:    c.userID,
		})
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.OK = true

	case frameTypeCancel:
		_, err := c.handler.sessionService.CancelSession(ctx, &session.CancelSessionInput{
			SessionID: c.sessionID,
			HostID:    c.userID,
		})
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.OK = true

	default:
		result.Error = "unknown frame type"
	}

	return result
}
