package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/lecture"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// live message types
const (
	cmdAdjust   = "adjust"
	cmdSave     = "save"
	cmdActivate = "activate"

	msgSnapshot = "snapshot"
	msgAck      = "ack"
	msgError    = "error"
)

type (
	// LiveCommand is sent by the operator. Counter is required by adjust and
	// save, Activation by activate.
	LiveCommand struct {
		Type       string              `json:"type" validate:"required,oneof=adjust save activate"`
		Counter    *lecture.CounterKey `json:"counter" validate:"required_unless=Type activate"`
		Delta      int                 `json:"delta" validate:"omitempty,oneof=-1 1"`
		Activation *lecture.Activation `json:"activation" validate:"required_if=Type activate"`
	}

	// LiveMessage is pushed to the operator: a board snapshot after every
	// change, and an ack or error per command.
	LiveMessage struct {
		Type     string              `json:"type"`
		Command  string              `json:"command,omitempty"`
		Counters []lecture.Counter   `json:"counters,omitempty"`
		Active   []lecture.Counter   `json:"active,omitempty"`
		Markers  lecture.Markers     `json:"markers,omitempty"`
		Counter  *lecture.Counter    `json:"counter,omitempty"`
		Current  *lecture.SubjectRow `json:"current,omitempty"`
		Error    string              `json:"error,omitempty"`
	}
)

func (cmd LiveCommand) Validate(validate *validator.Validate) error {
	return validate.Struct(cmd)
}

type liveApi struct {
	svc      *lecture.Service
	validate *validator.Validate
	logger   core.Logger
	upgrader websocket.Upgrader
}

func registerLiveAPI(g *echo.Group, svc *lecture.Service, validate *validator.Validate, logger core.Logger, anyOrigin bool) {
	api := liveApi{svc: svc, validate: validate, logger: logger}
	if anyOrigin {
		api.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	g.GET("/live", api.serve)
}

// liveSession pumps one operator connection. Board changes only raise the
// dirty flag; the writer renders the latest snapshot when it gets to it.
type liveSession struct {
	conn    *websocket.Conn
	board   *lecture.Board
	dirty   chan struct{}
	replies chan LiveMessage
	done    chan struct{} // closed when the reader stops
	written chan struct{} // closed when the writer stops
}

func newLiveSession(conn *websocket.Conn, board *lecture.Board) *liveSession {
	return &liveSession{
		conn:    conn,
		board:   board,
		dirty:   make(chan struct{}, 1),
		replies: make(chan LiveMessage, 16),
		done:    make(chan struct{}),
		written: make(chan struct{}),
	}
}

func (api *liveApi) serve(ctx echo.Context) error {
	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading to websocket")
	}
	defer conn.Close()

	sess := newLiveSession(conn, lecture.NewBoard(api.svc, api.logger))
	sess.board.OnChange(sess.markDirty)

	rctx := ctx.Request().Context()
	if err = sess.board.Open(rctx); err != nil {
		return errors.Wrap(err, "opening board")
	}
	defer sess.board.Close()

	go sess.writePump()

	sess.readPump(func(cmd LiveCommand) LiveMessage {
		return api.handle(rctx, sess.board, cmd)
	}, api.validate)

	close(sess.done)
	<-sess.written
	return nil
}

func (sess *liveSession) markDirty() {
	select {
	case sess.dirty <- struct{}{}:
	default:
	}
}

func (sess *liveSession) readPump(handle func(LiveCommand) LiveMessage, validate *validator.Validate) {
	sess.conn.SetReadLimit(maxMessageSize)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd LiveCommand
		if err = json.Unmarshal(data, &cmd); err != nil {
			if !sess.reply(LiveMessage{Type: msgError, Error: "invalid command"}) {
				return
			}
			continue
		}

		var msg LiveMessage
		if err = cmd.Validate(validate); err != nil {
			msg = LiveMessage{Type: msgError, Command: cmd.Type, Error: err.Error()}
		} else {
			msg = handle(cmd)
		}
		if !sess.reply(msg) {
			return
		}
	}
}

func (sess *liveSession) reply(msg LiveMessage) bool {
	select {
	case sess.replies <- msg:
		return true
	case <-sess.done:
		return false
	case <-sess.written:
		return false
	}
}

// writePump owns every write to the connection. A failed write closes the
// connection so the reader stops too.
func (sess *liveSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(sess.written)
	}()

	write := func(msg LiveMessage) error {
		_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return sess.conn.WriteJSON(msg)
	}

	for {
		select {
		case <-sess.dirty:
			if err := write(sess.snapshot()); err != nil {
				_ = sess.conn.Close()
				return
			}
		case msg := <-sess.replies:
			if err := write(msg); err != nil {
				_ = sess.conn.Close()
				return
			}
		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = sess.conn.Close()
				return
			}
		case <-sess.done:
			_ = sess.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		}
	}
}

func (sess *liveSession) snapshot() LiveMessage {
	return LiveMessage{
		Type:     msgSnapshot,
		Counters: sess.board.Counters(),
		Active:   sess.board.Active(),
		Markers:  sess.board.Markers(),
	}
}

func (api *liveApi) handle(ctx context.Context, board *lecture.Board, cmd LiveCommand) LiveMessage {
	var (
		c   lecture.Counter
		row lecture.SubjectRow
		err error
	)
	switch cmd.Type {
	case cmdAdjust:
		c, err = board.Adjust(*cmd.Counter, cmd.Delta)
	case cmdSave:
		c, err = board.Save(ctx, *cmd.Counter)
	case cmdActivate:
		row, c, err = board.Activate(ctx, *cmd.Activation)
	}
	if err != nil {
		return LiveMessage{Type: msgError, Command: cmd.Type, Error: api.errorMessage(err)}
	}

	msg := LiveMessage{Type: msgAck, Command: cmd.Type, Counter: &c}
	if cmd.Type == cmdActivate {
		msg.Current = &row
	}
	return msg
}

// errorMessage hides unexpected errors from the operator.
func (api *liveApi) errorMessage(err error) string {
	cause := errors.Cause(err)
	if core.IsValidationError(err) || notFoundErrs[cause] || cause == lecture.ErrBoardClosed {
		return cause.Error()
	}
	if api.logger != nil {
		api.logger.Error("live command failed", err)
	}
	return http.StatusText(http.StatusInternalServerError)
}
