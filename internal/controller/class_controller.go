package controller

import (
	"errors"

	"superr_bounty_backend/internal/model"
	"superr_bounty_backend/internal/service"
	"superr_bounty_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ClassController struct {
	ClassService *service.ClassService
}

func NewClassController(classService *service.ClassService) *ClassController {
	return &ClassController{ClassService: classService}
}

type CreateClassRequest struct {
	Grade        int    `json:"grade" binding:"required"`
	Section      string `json:"section" binding:"required"`
	Subject      string `json:"subject" binding:"required"`
	AcademicYear string `json:"academicYear"`
	Description  string `json:"description"`
}

// Create godoc
// @Summary 创建班级
// @Tags 班级
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   body body CreateClassRequest true "班级信息"
// @Success 201 {object} util.Response{data=model.SubjectClass}
// @Failure 400 {object} util.Response
// @Router /api/classes [post]
func (c *ClassController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req CreateClassRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	class := &model.SubjectClass{
		Grade:        req.Grade,
		Section:      req.Section,
		Subject:      req.Subject,
		AcademicYear: req.AcademicYear,
		Description:  req.Description,
	}
	if err := c.ClassService.Create(claims.UserID, class); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, class)
}

// Get godoc
// @Summary 班级详情
// @Tags 班级
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "班级 ID"
// @Success 200 {object} util.Response{data=model.SubjectClass}
// @Failure 404 {object} util.Response
// @Router /api/classes/{id} [get]
func (c *ClassController) Get(ctx *gin.Context) {
	class, err := c.ClassService.Get(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrClassNotFound) {
			util.NotFound(ctx, "班级不存在")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, class)
}

// List godoc
// @Summary 当前教师的班级列表
// @Tags 班级
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.SubjectClass}
// @Router /api/classes [get]
func (c *ClassController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	classes, err := c.ClassService.ListForTeacher(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, classes)
}

// Update godoc
// @Summary 更新班级
// @Tags 班级
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "班级 ID"
// @Param   body body CreateClassRequest true "班级信息"
// @Success 200 {object} util.Response{data=model.SubjectClass}
// @Failure 403 {object} util.Response
// @Router /api/classes/{id} [put]
func (c *ClassController) Update(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req CreateClassRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	class := &model.SubjectClass{
		Grade:        req.Grade,
		Section:      req.Section,
		Subject:      req.Subject,
		AcademicYear: req.AcademicYear,
		Description:  req.Description,
	}
	class.ID = ctx.Param("id")
	if err := c.ClassService.Update(claims.UserID, class); err != nil {
		switch {
		case errors.Is(err, util.ErrClassNotFound):
			util.NotFound(ctx, "班级不存在")
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx, "没有权限")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, class)
}

type EnrollRequest struct {
	StudentID string `json:"studentId" binding:"required"`
}

// Enroll godoc
// @Summary 把学生加入班级
// @Tags 班级
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "班级 ID"
// @Param   body body EnrollRequest true "学生"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/classes/{id}/students [post]
func (c *ClassController) Enroll(ctx *gin.Context) {
	var req EnrollRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.ClassService.Enroll(ctx.Param("id"), req.StudentID); err != nil {
		switch {
		case errors.Is(err, util.ErrClassNotFound):
			util.NotFound(ctx, "班级不存在")
		case errors.Is(err, util.ErrUserNotFound):
			util.NotFound(ctx, "学生不存在")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}

// Roster godoc
// @Summary 班级学生名单
// @Tags 班级
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "班级 ID"
// @Success 200 {object} util.Response{data=[]model.User}
// @Router /api/classes/{id}/roster [get]
func (c *ClassController) Roster(ctx *gin.Context) {
	users, err := c.ClassService.Roster(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrClassNotFound) {
			util.NotFound(ctx, "班级不存在")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, users)
}
