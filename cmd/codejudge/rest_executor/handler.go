package restexecutor

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kaiju-coding/codejudge/cmd/codejudge/model"
	"github.com/kaiju-coding/codejudge/evaluation"
	"github.com/kaiju-coding/codejudge/execution"
	"github.com/kaiju-coding/codejudge/language"
	"go.uber.org/zap"
)

// Evaluator grades a submission
type Evaluator interface {
	Evaluate(context.Context, evaluation.Submission) (*evaluation.Result, error)
}

type handle struct {
	executor  execution.Executor
	evaluator Evaluator
	languages []language.Language
	logger    *zap.Logger
}

// New creates the execute / evaluate / languages handle
func New(executor execution.Executor, evaluator Evaluator, languages []language.Language, logger *zap.Logger) Register {
	return &handle{
		executor:  executor,
		evaluator: evaluator,
		languages: languages,
		logger:    logger,
	}
}

func (h *handle) Register(r gin.IRoutes) {
	r.POST("/execute", h.handleExecute)
	r.POST("/evaluate", h.handleEvaluate)
	r.GET("/languages", h.handleLanguages)
}

func (h *handle) handleExecute(c *gin.Context) {
	var req model.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, h.logger, model.BindError(err))
		return
	}
	r, err := model.ConvertExecuteRequest(&req)
	if err != nil {
		AbortWithError(c, h.logger, err)
		return
	}
	p, _ := PrincipalFrom(c)
	h.logger.Debug("execute", zap.String("subject", p.Subject), zap.Stringer("language", r.Language))

	o, err := h.executor.Execute(c.Request.Context(), r)
	if err != nil {
		AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.Response[model.ExecutionResult]{Result: model.ConvertOutcome(o)})
}

func (h *handle) handleEvaluate(c *gin.Context) {
	var req model.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, h.logger, model.BindError(err))
		return
	}
	p, _ := PrincipalFrom(c)
	sub, err := model.ConvertEvaluateRequest(&req, p.Subject)
	if err != nil {
		AbortWithError(c, h.logger, err)
		return
	}
	rt, err := h.evaluator.Evaluate(c.Request.Context(), sub)
	if err != nil {
		AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.Response[*evaluation.Result]{Result: rt})
}

func (h *handle) handleLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": h.languages})
}
