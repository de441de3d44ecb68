package controller

import (
	"errors"
	"time"

	"superr_bounty_backend/internal/live"
	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/service"
	"superr_bounty_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LiveController struct {
	Hub         *service.LiveHub
	LiveService *service.LiveSessionService
	AuthService *service.AuthService
	Tree        live.Tree
}

func NewLiveController(hub *service.LiveHub, liveService *service.LiveSessionService, authService *service.AuthService, tree live.Tree) *LiveController {
	return &LiveController{
		Hub:         hub,
		LiveService: liveService,
		AuthService: authService,
		Tree:        tree,
	}
}

// ServeWs godoc
// @Summary 直播 websocket 接入
// @Description 升级为 websocket，下行全量状态快照，上行指令
// @Tags 直播
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Success 101 {string} string "switching protocols"
// @Failure 403 {object} util.Response
// @Router /api/sessions/{id}/live/ws [get]
func (c *LiveController) ServeWs(ctx *gin.Context) {
	sessionID := ctx.Param("id")
	user, role, ok := c.authorize(ctx, sessionID)
	if !ok {
		return
	}
	c.Hub.ServeLiveWs(ctx.Writer, ctx.Request, sessionID, user.ID, role)
}

type moveRequest struct {
	// direction 取 next 或 previous
	Direction string `json:"direction" binding:"required,oneof=next previous"`
}

// Move godoc
// @Summary 翻页（REST 镜像）
// @Description 教师端无 websocket 时翻页，越界自动夹到合法区间
// @Tags 直播
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Param   body body moveRequest true "方向"
// @Success 200 {object} util.Response{data=object}
// @Router /api/sessions/{id}/live/move [post]
func (c *LiveController) Move(ctx *gin.Context) {
	sessionID := ctx.Param("id")
	_, role, ok := c.authorize(ctx, sessionID)
	if !ok {
		return
	}
	if role != live.RoleTeacher {
		util.Forbidden(ctx, "没有权限")
		return
	}

	var req moveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	cards, err := c.LiveService.SessionCards(ctx.Request.Context(), sessionID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	index, err := c.Tree.GetIndex(ctx.Request.Context(), sessionID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	next := index
	if req.Direction == "next" {
		next++
	} else {
		next--
	}
	if next < 0 {
		next = 0
	}
	if len(cards) > 0 && next > len(cards)-1 {
		next = len(cards) - 1
	}
	if len(cards) == 0 {
		next = 0
	}

	if next != index {
		if err := c.Tree.SetIndex(ctx.Request.Context(), sessionID, next); err != nil {
			util.LogInternalError(ctx, err)
			return
		}
	}
	util.Success(ctx, gin.H{"cardIndex": next})
}

type submitRequest struct {
	CardIndex int         `json:"cardIndex"`
	Response  interface{} `json:"response" binding:"required"`
}

// Submit godoc
// @Summary 提交回答（REST 镜像）
// @Description 回答按卡片 kind 解码校验后写入，种类不支持回答时报错
// @Tags 直播
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Param   body body submitRequest true "卡片下标和回答"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /api/sessions/{id}/live/submit [post]
func (c *LiveController) Submit(ctx *gin.Context) {
	sessionID := ctx.Param("id")
	user, role, ok := c.authorize(ctx, sessionID)
	if !ok {
		return
	}
	if role != live.RoleStudent {
		util.Forbidden(ctx, "没有权限")
		return
	}

	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	cards, err := c.LiveService.SessionCards(ctx.Request.Context(), sessionID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if req.CardIndex < 0 || req.CardIndex >= len(cards) {
		util.BadRequest(ctx, "卡片下标越界")
		return
	}

	kind := cards[req.CardIndex].Kind
	resp, err := model.DecodeResponse(kind, req.Response)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	raw, err := model.EncodeResponse(kind, resp)
	if err != nil || raw == nil {
		util.BadRequest(ctx, "回答为空")
		return
	}

	if err := c.Tree.SetResponse(ctx.Request.Context(), sessionID, req.CardIndex, user.ID, raw); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// RaiseHand godoc
// @Summary 举手（REST 镜像）
// @Tags 直播
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/live/hand [post]
func (c *LiveController) RaiseHand(ctx *gin.Context) {
	sessionID := ctx.Param("id")
	user, role, ok := c.authorize(ctx, sessionID)
	if !ok {
		return
	}
	if role != live.RoleStudent {
		util.Forbidden(ctx, "没有权限")
		return
	}
	if err := c.Tree.SetHandRaise(ctx.Request.Context(), sessionID, user.ID, time.Now().UnixMilli()); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// LowerHand godoc
// @Summary 收回举手（REST 镜像）
// @Tags 直播
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/live/hand [delete]
func (c *LiveController) LowerHand(ctx *gin.Context) {
	sessionID := ctx.Param("id")
	user, role, ok := c.authorize(ctx, sessionID)
	if !ok {
		return
	}
	if role != live.RoleStudent {
		util.Forbidden(ctx, "没有权限")
		return
	}
	if err := c.Tree.RemoveHandRaise(ctx.Request.Context(), sessionID, user.ID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ResolveHand godoc
// @Summary 教师放下学生的手（REST 镜像）
// @Tags 直播
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Param   studentId path string true "学生 ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/live/hands/{studentId} [delete]
func (c *LiveController) ResolveHand(ctx *gin.Context) {
	sessionID := ctx.Param("id")
	_, role, ok := c.authorize(ctx, sessionID)
	if !ok {
		return
	}
	if role != live.RoleTeacher {
		util.Forbidden(ctx, "没有权限")
		return
	}
	if err := c.Tree.RemoveHandRaise(ctx.Request.Context(), sessionID, ctx.Param("studentId")); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ResolveAllHands godoc
// @Summary 教师清空举手列表（REST 镜像）
// @Tags 直播
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话 ID"
// @Success 200 {object} util.Response
// @Router /api/sessions/{id}/live/hands [delete]
func (c *LiveController) ResolveAllHands(ctx *gin.Context) {
	sessionID := ctx.Param("id")
	_, role, ok := c.authorize(ctx, sessionID)
	if !ok {
		return
	}
	if role != live.RoleTeacher {
		util.Forbidden(ctx, "没有权限")
		return
	}
	if err := c.Tree.RemoveAllHandRaises(ctx.Request.Context(), sessionID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

func (c *LiveController) authorize(ctx *gin.Context, sessionID string) (*model.User, live.Role, bool) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx, "unauthorized")
		return nil, "", false
	}
	role, err := c.LiveService.Authorize(sessionID, user)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrSessionNotFound):
			util.NotFound(ctx, "会话不存在")
		case errors.Is(err, util.ErrSessionNotLive):
			util.Error(ctx, 409, "会话不在进行中")
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx, "没有权限")
		default:
			util.LogInternalError(ctx, err)
		}
		return nil, "", false
	}
	return user, role, true
}
