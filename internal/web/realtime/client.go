package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kozaktomas/face-recognition/internal/apperr"
	"github.com/kozaktomas/face-recognition/internal/constants"
	"github.com/kozaktomas/face-recognition/internal/pipeline"
	"github.com/kozaktomas/face-recognition/internal/web/binding"
)

type client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan Outbound
	limiter *rate.Limiter
	logger  logrus.FieldLogger
}

// enqueue queues a message without blocking; a full queue drops it.
func (c *client) enqueue(event string, data any) {
	select {
	case c.send <- Outbound{Event: event, Data: data}:
	default:
		c.logger.WithField("event", event).Warn("send queue full, dropping message")
	}
}

func (c *client) sendError(err error) {
	c.enqueue(EventError, binding.NewErrorBody(err))
}

// readPump handles messages one at a time, so events of a connection are serialized.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		c.logger.Info("websocket client disconnected")
	}()

	c.conn.SetReadLimit(constants.MaxWebSocketMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketReadTimeout))
		return nil
	})

	for {
		var msg Inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Warn("websocket read failed")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketReadTimeout))
		c.dispatch(msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.WithError(err).Debug("websocket write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) geometryContext() (context.Context, context.CancelFunc) {
	if t := c.hub.opts.GeometryTimeout; t > 0 {
		return context.WithTimeout(context.Background(), t)
	}
	return context.WithCancel(context.Background())
}

func (c *client) dispatch(msg Inbound) {
	switch msg.Event {
	case EventVideoFrame:
		c.handleVideoFrame(msg.Data)
	case EventChallengeFrame:
		c.handleChallengeFrame(msg.Data)
	case EventEnrollmentFrame:
		c.handleEnrollmentFrame(msg.Data)
	case EventUpdateSettings:
		c.handleUpdateSettings(msg.Data)
	case EventSaveChallengeScore:
		c.handleSaveChallengeScore(msg.Data)
	default:
		c.sendError(apperr.Validation(apperr.ReasonInvalidRequest, "unknown event: %s", msg.Event))
	}
}

// decodeFrame decodes a frame payload. It returns false when the message should be
// ignored: an empty frame or one over the rate limit.
func (c *client) decodeFrame(data json.RawMessage, dst any, frame func() string) bool {
	if len(data) > 0 {
		if err := json.Unmarshal(data, dst); err != nil {
			c.sendError(apperr.Validation(apperr.ReasonInvalidRequest, "invalid payload"))
			return false
		}
	}
	if frame() == "" {
		return false
	}
	if err := c.hub.deps.Validator.Struct(dst); err != nil {
		c.sendError(err)
		return false
	}
	if !c.limiter.Allow() {
		c.logger.Debug("frame dropped by rate limiter")
		return false
	}
	return true
}

func (c *client) process(frame string) *pipeline.Result {
	ctx, cancel := c.geometryContext()
	defer cancel()

	result, err := c.hub.deps.Pipeline.Process(ctx, frame)
	if err != nil {
		c.sendError(err)
		return nil
	}
	return result
}

func (c *client) handleVideoFrame(data json.RawMessage) {
	var req binding.Frame
	if !c.decodeFrame(data, &req, func() string { return req.Frame }) {
		return
	}
	if result := c.process(req.Frame); result != nil {
		c.enqueue(EventFrameProcessed, result)
	}
}

func (c *client) handleChallengeFrame(data json.RawMessage) {
	var req binding.ChallengeFrame
	if !c.decodeFrame(data, &req, func() string { return req.Frame }) {
		return
	}
	result := c.process(req.Frame)
	if result == nil {
		return
	}
	result.Challenge = req.Challenge
	c.enqueue(EventChallengeResult, result)

	if req.Challenge != multiFaceChallenge {
		return
	}
	ctx, cancel := c.geometryContext()
	defer cancel()
	rows, err := c.hub.deps.Pipeline.Confusion(ctx, req.Frame)
	if err != nil {
		c.sendError(err)
		return
	}
	if rows != nil {
		c.enqueue(EventConfusionData, rows)
	}
}

func (c *client) handleEnrollmentFrame(data json.RawMessage) {
	var req binding.Frame
	if !c.decodeFrame(data, &req, func() string { return req.Frame }) {
		return
	}

	ctx, cancel := c.geometryContext()
	defer cancel()
	feedback, err := c.hub.deps.Enrollment.Feedback(ctx, req.Frame)
	if err != nil {
		c.sendError(err)
		return
	}
	c.enqueue(EventEnrollmentFeedback, feedback)
}

// SettingsPayload is the settings_updated event.
type SettingsPayload struct {
	Status   string            `json:"status"`
	Settings pipeline.Settings `json:"settings"`
}

func (c *client) handleUpdateSettings(data json.RawMessage) {
	var req pipeline.SettingsUpdate
	if err := c.hub.deps.Validator.Unmarshal(data, &req); err != nil {
		c.sendError(err)
		return
	}
	settings, err := c.hub.deps.Pipeline.UpdateSettings(req)
	if err != nil {
		c.sendError(err)
		return
	}
	c.enqueue(EventSettingsUpdated, SettingsPayload{Status: "ok", Settings: settings})
}

func (c *client) handleSaveChallengeScore(data json.RawMessage) {
	var req binding.ChallengeScore
	if err := c.hub.deps.Validator.Unmarshal(data, &req); err != nil {
		c.sendError(err)
		return
	}
	c.hub.deps.Analytics.RecordChallengeScore(req.Challenge, req.Score, req.Details)
	c.logger.WithFields(logrus.Fields{
		"challenge": req.Challenge,
		"score":     req.Score,
	}).Info("challenge score saved")
	c.enqueue(EventChallengeSaved, StatusPayload{Status: "ok"})
}
