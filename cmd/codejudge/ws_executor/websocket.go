package wsexecutor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kaiju-coding/codejudge/cmd/codejudge/model"
	restexecutor "github.com/kaiju-coding/codejudge/cmd/codejudge/rest_executor"
	"github.com/kaiju-coding/codejudge/evaluation"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
	"go.uber.org/zap"
)

// Evaluator grades a submission and reports every finished test case
type Evaluator interface {
	EvaluateWithProgress(context.Context, evaluation.Submission, evaluation.ProgressFunc) (*evaluation.Result, error)
}

// New creates the websocket evaluation handle
func New(evaluator Evaluator, logger *zap.Logger) restexecutor.Register {
	return &wsHandle{
		evaluator: evaluator,
		logger:    logger,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 4 << 20
)

// Frame types
const (
	FrameProgress = "progress"
	FrameResult   = "result"
	FrameError    = "error"
)

// Frame is a message sent by the server
type Frame struct {
	Type   string           `json:"type"`
	Index  *int             `json:"index,omitempty"`
	Result any              `json:"result,omitempty"`
	Error  *model.ErrorBody `json:"error,omitempty"`
}

type wsHandle struct {
	evaluator Evaluator
	logger    *zap.Logger
}

func (h *wsHandle) Register(r gin.IRoutes) {
	r.GET("/ws/evaluate", h.handleWS)
}

func (h *wsHandle) handleWS(c *gin.Context) {
	p, _ := restexecutor.PrincipalFrom(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader has replied with the error status
		c.Error(err)
		return
	}
	go h.serve(conn, p.Subject)
}

func (h *wsHandle) serve(conn *websocket.Conn, subject string) {
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var req model.EvaluateRequest
	if err := conn.ReadJSON(&req); err != nil {
		h.logger.Debug("ws read request failed", zap.Error(err))
		h.writeFinal(conn, h.errorFrame(model.BindError(err)))
		return
	}
	sub, err := model.ConvertEvaluateRequest(&req, subject)
	if err != nil {
		h.writeFinal(conn, h.errorFrame(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the client closing the connection cancels the evaluation
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	sendCh := make(chan Frame, 16)
	go func() {
		defer close(sendCh)
		rt, err := h.evaluator.EvaluateWithProgress(ctx, sub, func(i int, r evaluation.TestCaseResult) {
			select {
			case sendCh <- Frame{Type: FrameProgress, Index: &i, Result: r}:
			case <-ctx.Done():
			}
		})
		final := Frame{Type: FrameResult, Result: rt}
		if err != nil {
			final = h.errorFrame(err)
		}
		select {
		case sendCh <- final:
		case <-ctx.Done():
		}
	}()
	h.sendLoop(ctx, conn, sendCh)
}

func (h *wsHandle) sendLoop(ctx context.Context, conn *websocket.Conn, sendCh <-chan Frame) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-sendCh:
			if !ok {
				return
			}
			if f.Type != FrameProgress {
				h.writeFinal(conn, f)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeFinal writes the last frame followed by a normal close
func (h *wsHandle) writeFinal(conn *websocket.Conn, f Frame) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(f); err != nil {
		h.logger.Debug("ws write error", zap.Error(err))
		return
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *wsHandle) errorFrame(err error) Frame {
	if apperr.KindOf(err) == apperr.KindInternal && !errors.Is(err, context.Canceled) {
		h.logger.Error("ws evaluation failed", zap.Error(err))
	}
	_, body := model.ConvertError(err)
	return Frame{Type: FrameError, Error: &body.Error}
}
