package controller

import (
	"errors"
	"time"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/service"
	"superr_bounty_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	SessionService *service.SessionService
	AuthService    *service.AuthService
}

func NewSessionController(sessionService *service.SessionService, authService *service.AuthService) *SessionController {
	return &SessionController{
		SessionService: sessionService,
		AuthService:    authService,
	}
}

type CreateSessionRequest struct {
	ClassID              string    `json:"classId" binding:"required"`
	Title                string    `json:"title" binding:"required"`
	Description          string    `json:"description"`
	StartTime            time.Time `json:"startTime" binding:"required"`
	EndTime              time.Time `json:"endTime"`
	DeckIDs              []string  `json:"deckIds"`
	PresentationMode     string    `json:"presentationMode"`
	TimedDurationMinutes int       `json:"timedDurationMinutes"`
}

// Create godoc
// @Summary 创建会话
// @Description 创建演示会话，首次创建即生成六位加入码
// @Tags 会话
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body CreateSessionRequest true "会话信息"
// @Success 201 {object} util.Response{data=model.Session}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /api/sessions [post]
func (c *SessionController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session := &model.Session{
		ClassID:              req.ClassID,
		Title:                req.Title,
		Description:          req.Description,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		PresentationMode:     model.PresentationMode(req.PresentationMode),
		TimedDurationMinutes: req.TimedDurationMinutes,
	}
	if err := session.SetDeckIDList(req.DeckIDs); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.SessionService.Create(claims.UserID, session); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Created(ctx, session)
}

// Get godoc
// @Summary 会话详情
// @Tags 会话
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Success 200 {object} util.Response{data=model.Session}
// @Failure 404 {object} util.Response
// @Router /api/sessions/{id} [get]
func (c *SessionController) Get(ctx *gin.Context) {
	session, err := c.SessionService.Get(ctx.Param("id"))
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// ListByClass godoc
// @Summary 班级会话列表
// @Tags 会话
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "班级 ID"
// @Success 200 {object} util.Response{data=[]model.Session}
// @Router /api/classes/{id}/sessions [get]
func (c *SessionController) ListByClass(ctx *gin.Context) {
	sessions, err := c.SessionService.ListByClass(ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, sessions)
}

// List godoc
// @Summary 会话筛选列表
// @Description 按状态或时间区间筛选会话。status 与 from/to 二选一；状态筛选仅教师可用
// @Tags 会话
// @Produce  json
// @Security BearerAuth
// @Param   status query string false "scheduled / in_progress / completed / cancelled"
// @Param   from query string false "起始时间，RFC3339"
// @Param   to query string false "结束时间，RFC3339"
// @Success 200 {object} util.Response{data=[]model.Session}
// @Failure 400 {object} util.Response
// @Router /api/sessions [get]
func (c *SessionController) List(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx, "unauthorized")
		return
	}

	fromStr, toStr := ctx.Query("from"), ctx.Query("to")
	if fromStr != "" || toStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			util.BadRequest(ctx, "from 不是合法的 RFC3339 时间")
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			util.BadRequest(ctx, "to 不是合法的 RFC3339 时间")
			return
		}
		sessions, err := c.SessionService.ListInRange(user, from, to)
		if err != nil {
			c.renderError(ctx, err)
			return
		}
		util.Success(ctx, sessions)
		return
	}

	status := ctx.Query("status")
	if status == "" {
		util.BadRequest(ctx, "status 或 from/to 必填")
		return
	}
	if !user.IsTeacher() {
		util.Forbidden(ctx, "没有权限")
		return
	}
	sessions, err := c.SessionService.ListByStatus(model.SessionStatus(status))
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, sessions)
}

// Buckets godoc
// @Summary 会话分栏
// @Description 当前用户可见的会话按今天 / 之后 / 之前分三栏
// @Tags 会话
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.SessionBuckets}
// @Router /api/sessions/buckets [get]
func (c *SessionController) Buckets(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx, "unauthorized")
		return
	}
	buckets, err := c.SessionService.BucketsForUser(user, time.Now())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, buckets)
}

type UpdateSessionRequest struct {
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	StartTime            time.Time `json:"startTime"`
	EndTime              time.Time `json:"endTime"`
	PresentationMode     string    `json:"presentationMode"`
	TimedDurationMinutes int       `json:"timedDurationMinutes"`
}

// Update godoc
// @Summary 更新会话
// @Tags 会话
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Param   body body UpdateSessionRequest true "会话信息"
// @Success 200 {object} util.Response{data=model.Session}
// @Router /api/sessions/{id} [put]
func (c *SessionController) Update(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req UpdateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.SessionService.Get(ctx.Param("id"))
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	if req.Title != "" {
		session.Title = req.Title
	}
	if req.Description != "" {
		session.Description = req.Description
	}
	if !req.StartTime.IsZero() {
		session.StartTime = req.StartTime
	}
	if !req.EndTime.IsZero() {
		session.EndTime = req.EndTime
	}
	if req.PresentationMode != "" {
		session.PresentationMode = model.PresentationMode(req.PresentationMode)
	}
	if req.TimedDurationMinutes > 0 {
		session.TimedDurationMinutes = req.TimedDurationMinutes
	}

	if err := c.SessionService.Update(claims.UserID, session); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// Delete godoc
// @Summary 删除会话
// @Tags 会话
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id} [delete]
func (c *SessionController) Delete(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.SessionService.Delete(claims.UserID, ctx.Param("id")); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type DeckRefRequest struct {
	DeckID string `json:"deckId" binding:"required"`
}

// AddDeck godoc
// @Summary 会话追加 deck
// @Tags 会话
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Param   body body DeckRefRequest true "deck 引用"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/decks [post]
func (c *SessionController) AddDeck(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req DeckRefRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.SessionService.AddDeck(claims.UserID, ctx.Param("id"), req.DeckID); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// RemoveDeck godoc
// @Summary 会话移除 deck
// @Tags 会话
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Param   deckId path string true "deck ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/decks/{deckId} [delete]
func (c *SessionController) RemoveDeck(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.SessionService.RemoveDeck(claims.UserID, ctx.Param("id"), ctx.Param("deckId")); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type VerifyCodeRequest struct {
	Code string `json:"code" binding:"required,len=6"`
}

// VerifyCode godoc
// @Summary 校验加入码
// @Tags 会话
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Param   body body VerifyCodeRequest true "六位加入码"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response "加入码不正确"
// @Router /api/sessions/{id}/verify-code [post]
func (c *SessionController) VerifyCode(ctx *gin.Context) {
	var req VerifyCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.SessionService.VerifyCode(ctx.Param("id"), req.Code); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"valid": true})
}

// JoinByCode godoc
// @Summary 凭加入码加入会话
// @Description 学生输入六位加入码，找到会话并自动报进对应班级
// @Tags 会话
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body VerifyCodeRequest true "六位加入码"
// @Success 200 {object} util.Response{data=model.Session}
// @Failure 404 {object} util.Response
// @Router /api/sessions/join [post]
func (c *SessionController) JoinByCode(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req VerifyCodeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	session, err := c.SessionService.JoinByCode(claims.UserID, req.Code)
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// StartLive godoc
// @Summary 开始直播
// @Tags 会话
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Success 200 {object} util.Response{data=model.Session}
// @Router /api/sessions/{id}/start [post]
func (c *SessionController) StartLive(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	session, err := c.SessionService.StartLive(claims.UserID, ctx.Param("id"))
	if err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// EndLive godoc
// @Summary 结束直播
// @Tags 会话
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/end [post]
func (c *SessionController) EndLive(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.SessionService.EndLive(claims.UserID, ctx.Param("id")); err != nil {
		c.renderError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

func (c *SessionController) renderError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrSessionNotFound):
		util.NotFound(ctx, "会话不存在")
	case errors.Is(err, util.ErrClassNotFound):
		util.NotFound(ctx, "班级不存在")
	case errors.Is(err, util.ErrUserNotFound):
		util.NotFound(ctx, "用户不存在")
	case errors.Is(err, util.ErrDeckNotFound):
		util.NotFound(ctx, "deck 不存在")
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx, "没有权限")
	case errors.Is(err, util.ErrInvalidSessionCode):
		util.Forbidden(ctx, "加入码不正确")
	case errors.Is(err, util.ErrSessionNotLive):
		util.Error(ctx, 409, "会话不在进行中")
	case errors.Is(err, util.ErrInvalidRequest):
		util.BadRequest(ctx, "请求参数不合法")
	default:
		util.LogInternalError(ctx, err)
	}
}
