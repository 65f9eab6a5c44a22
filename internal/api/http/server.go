// Package http exposes the ABI codec façade over a small gin router,
// adapted from the teacher's query API server.
package http

import (
	"github.com/gin-gonic/gin"
)

var basePath = "/api/v1"

type CodecController interface {
	EncodeInput(*gin.Context)
	DecodeInput(*gin.Context)
	DecodeOutput(*gin.Context)
	EncodeEvent(*gin.Context)
	DecodeEvent(*gin.Context)
	EncodeData(*gin.Context)
	DecodeData(*gin.Context)
	DecodeFields(*gin.Context)
	FunctionID(*gin.Context)
}

type Server struct {
	listenHost string
	router     *gin.Engine
}

func NewServer(host string) *Server {
	return &Server{listenHost: host, router: gin.Default()}
}

func (s *Server) RegisterRoutes(c CodecController) {
	base := s.router.Group(basePath + "/:name")

	base.POST("/function/:function/input/encode", c.EncodeInput)
	base.POST("/input/decode", c.DecodeInput)
	base.POST("/function/:function/output/decode", c.DecodeOutput)
	base.POST("/event/:event/encode", c.EncodeEvent)
	base.POST("/event/decode", c.DecodeEvent)
	base.POST("/data/encode", c.EncodeData)
	base.POST("/data/decode", c.DecodeData)
	base.POST("/fields/decode", c.DecodeFields)
	base.GET("/function/:function/id", c.FunctionID)
}

func (s *Server) Run() error {
	return s.router.Run(s.listenHost)
}
