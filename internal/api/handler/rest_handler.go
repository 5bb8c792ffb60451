package handler

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/pkg/response"
	"Keepsake/internal/pkg/rowfilter"
	"Keepsake/internal/service"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 1 << 20

// RestHandler 通用表接口：
//
//	GET    /rest/:table?col=op.value&order=col.desc&limit=50
//	POST   /rest/:table
//	PATCH  /rest/:table?id=eq.1
//	DELETE /rest/:table?id=eq.1
type RestHandler struct {
	restSvc  service.RestService
	imageSvc service.ImageService
}

func NewRestHandler(restSvc service.RestService, imageSvc service.ImageService) *RestHandler {
	return &RestHandler{restSvc: restSvc, imageSvc: imageSvc}
}

func (s *RestHandler) Select(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := s.restSvc.Select(c.Request.Context(), scopeOf(c), c.Param("table"), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

func (s *RestHandler) Insert(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	row, err := s.restSvc.Insert(c.Request.Context(), scopeOf(c), c.Param("table"), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, row)
}

func (s *RestHandler) Update(c *gin.Context) {
	filter, err := rowfilter.Parse(c.Request.URL.Query())
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := readBody(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	affected, err := s.restSvc.Update(c.Request.Context(), scopeOf(c), c.Param("table"), filter, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.AffectedDTO{Affected: affected})
}

func (s *RestHandler) Delete(c *gin.Context) {
	filter, err := rowfilter.Parse(c.Request.URL.Query())
	if err != nil {
		response.Error(c, err)
		return
	}
	affected, err := s.restSvc.Delete(c.Request.Context(), scopeOf(c), c.Param("table"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.AffectedDTO{Affected: affected})
}

// Days 按天相册列表，?vault=true 查看私密相册
func (s *RestHandler) Days(c *gin.Context) {
	vault := c.Query("vault") == "true"
	days, err := s.imageSvc.ListDays(c.Request.Context(), scopeOf(c), vault)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, days)
}

func parseQuery(c *gin.Context) (service.Query, error) {
	var q service.Query
	filter, err := rowfilter.Parse(c.Request.URL.Query())
	if err != nil {
		return q, err
	}
	q.Filter = filter
	if raw := c.Query("order"); raw != "" {
		if q.Order, err = rowfilter.ParseOrder(raw); err != nil {
			return q, err
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if q.Limit, err = strconv.Atoi(raw); err != nil || q.Limit < 0 {
			return q, service.ErrParamInvalid
		}
	}
	return q, nil
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil || len(body) == 0 {
		return nil, service.ErrParamInvalid
	}
	return body, nil
}
