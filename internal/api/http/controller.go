package http

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/tvmlabs/tvmabi/contract"
	"github.com/tvmlabs/tvmabi/registry"
)

var _ CodecController = (*Controller)(nil)

// Controller serves the ABI codec façade over HTTP, resolving the
// target contract document by name from the registry on every request.
type Controller struct {
	reg *registry.Repository
}

func NewController(reg *registry.Repository) *Controller {
	return &Controller{reg: reg}
}

func paramErr(ctx *gin.Context, param string, err error) {
	ctx.IndentedJSON(http.StatusBadRequest, gin.H{"param": param, "error": err.Error()})
}

func internalErr(ctx *gin.Context, err error) {
	log.Error().Str("path", ctx.FullPath()).Err(err).Msg("internal server error")
	ctx.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (c *Controller) resolve(ctx context.Context, name string) (*contract.Contract, error) {
	doc, err := c.reg.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return contract.New(doc), nil
}

type bocRequest struct {
	BoC string `json:"boc" binding:"required"`
}

type bocResponse struct {
	BoC string `json:"boc"`
}

func (r bocRequest) slice() (*cell.Slice, error) {
	raw, err := base64.StdEncoding.DecodeString(r.BoC)
	if err != nil {
		return nil, err
	}
	c, err := cell.FromBOC(raw)
	if err != nil {
		return nil, err
	}
	return c.BeginParse(), nil
}

func (r bocRequest) root() (*cell.Cell, error) {
	raw, err := base64.StdEncoding.DecodeString(r.BoC)
	if err != nil {
		return nil, err
	}
	return cell.FromBOC(raw)
}

func cellResponse(ctx *gin.Context, c *cell.Cell) {
	boc := c.ToBOC()
	ctx.IndentedJSON(http.StatusOK, bocResponse{BoC: base64.StdEncoding.EncodeToString(boc)})
}

// EncodeInput godoc
//
//	@Summary		encode function input
//	@Description	Encodes a function call body
//	@Tags			codec
//	@Accept			json
//	@Produce		json
//	@Param			name		path	string			true	"contract name"
//	@Param			function	path	string			true	"function name"
//	@Success		200			{object}	bocResponse
//	@Router			/{name}/function/{function}/input/encode [post]
func (c *Controller) EncodeInput(ctx *gin.Context) {
	var req struct {
		Args   map[string]any `json:"args"`
		Header map[string]any `json:"header"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		paramErr(ctx, "body", err)
		return
	}
	ct, err := c.resolve(ctx, ctx.Param("name"))
	if err != nil {
		internalErr(ctx, err)
		return
	}
	body, err := ct.EncodeInput(ctx.Param("function"), req.Args, req.Header, nil, nil)
	if err != nil {
		internalErr(ctx, err)
		return
	}
	cellResponse(ctx, body)
}

// DecodeInput godoc
//
//	@Summary		decode function input
//	@Description	Decodes a function call body
//	@Tags			codec
//	@Accept			json
//	@Produce		json
//	@Param			name	path	string	true	"contract name"
//	@Success		200		{object}	gin.H
//	@Router			/{name}/input/decode [post]
func (c *Controller) DecodeInput(ctx *gin.Context) {
	var req bocRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		paramErr(ctx, "body", err)
		return
	}
	s, err := req.slice()
	if err != nil {
		paramErr(ctx, "boc", err)
		return
	}
	ct, err := c.resolve(ctx, ctx.Param("name"))
	if err != nil {
		internalErr(ctx, err)
		return
	}
	name, header, args, err := ct.DecodeInput(s)
	if err != nil {
		internalErr(ctx, err)
		return
	}
	ctx.IndentedJSON(http.StatusOK, gin.H{"function": name, "header": header, "args": args})
}

// DecodeOutput godoc
//
//	@Summary		decode function output
//	@Description	Decodes a function response body
//	@Tags			codec
//	@Accept			json
//	@Produce		json
//	@Param			name		path	string	true	"contract name"
//	@Param			function	path	string	true	"function name"
//	@Success		200			{object}	gin.H
//	@Router			/{name}/function/{function}/output/decode [post]
func (c *Controller) DecodeOutput(ctx *gin.Context) {
	var req bocRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		paramErr(ctx, "body", err)
		return
	}
	s, err := req.slice()
	if err != nil {
		paramErr(ctx, "boc", err)
		return
	}
	ct, err := c.resolve(ctx, ctx.Param("name"))
	if err != nil {
		internalErr(ctx, err)
		return
	}
	out, err := ct.DecodeOutput(ctx.Param("function"), s)
	if err != nil {
		internalErr(ctx, err)
		return
	}
	ctx.IndentedJSON(http.StatusOK, out)
}

// EncodeEvent godoc
//
//	@Summary		encode event
//	@Tags			codec
//	@Accept			json
//	@Produce		json
//	@Param			name	path	string	true	"contract name"
//	@Param			event	path	string	true	"event name"
//	@Success		200		{object}	bocResponse
//	@Router			/{name}/event/{event}/encode [post]
func (c *Controller) EncodeEvent(ctx *gin.Context) {
	var req struct {
		Args map[string]any `json:"args"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		paramErr(ctx, "body", err)
		return
	}
	ct, err := c.resolve(ctx, ctx.Param("name"))
	if err != nil {
		internalErr(ctx, err)
		return
	}
	body, err := ct.EncodeEvent(ctx.Param("event"), req.Args)
	if err != nil {
		internalErr(ctx, err)
		return
	}
	cellResponse(ctx, body)
}

// DecodeEvent godoc
//
//	@Summary		decode event
//	@Tags			codec
//	@Accept			json
//	@Produce		json
//	@Param			name	path	string	true	"contract name"
//	@Success		200		{object}	gin.H
//	@Router			/{name}/event/decode [post]
func (c *Controller) DecodeEvent(ctx *gin.Context) {
	var req bocRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		paramErr(ctx, "body", err)
		return
	}
	s, err := req.slice()
	if err != nil {
		paramErr(ctx, "boc", err)
		return
	}
	ct, err := c.resolve(ctx, ctx.Param("name"))
	if err != nil {
		internalErr(ctx, err)
		return
	}
	name, args, err := ct.DecodeEvent(s)
	if err != nil {
		internalErr(ctx, err)
		return
	}
	ctx.IndentedJSON(http.StatusOK, gin.H{"event": name, "args": args})
}

// EncodeData godoc
//
//	@Summary		encode persistent data
//	@Tags			codec
//	@Accept			json
//	@Produce		json
//	@Param			name	path	string	true	"contract name"
//	@Success		200		{object}	bocResponse
//	@Router			/{name}/data/encode [post]
func (c *Controller) EncodeData(ctx *gin.Context) {
	var req struct {
		Values map[string]any `json:"values"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		paramErr(ctx, "body", err)
		return
	}
	ct, err := c.resolve(ctx, ctx.Param("name"))
	if err != nil {
		internalErr(ctx, err)
		return
	}
	out, err := ct.EncodeData(req.Values)
	if err != nil {
		internalErr(ctx, err)
		return
	}
	cellResponse(ctx, out)
}

// DecodeData godoc
//
//	@Summary		decode persistent data
//	@Tags			codec
//	@Accept			json
//	@Produce		json
//	@Param			name	path	string	true	"contract name"
//	@Success		200		{object}	gin.H
//	@Router			/{name}/data/decode [post]
func (c *Controller) DecodeData(ctx *gin.Context) {
	var req bocRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		paramErr(ctx, "body", err)
		return
	}
	root, err := req.root()
	if err != nil {
		paramErr(ctx, "boc", err)
		return
	}
	ct, err := c.resolve(ctx, ctx.Param("name"))
	if err != nil {
		internalErr(ctx, err)
		return
	}
	out, err := ct.DecodeData(root)
	if err != nil {
		internalErr(ctx, err)
		return
	}
	ctx.IndentedJSON(http.StatusOK, out)
}

// DecodeFields godoc
//
//	@Summary		decode full storage
//	@Tags			codec
//	@Accept			json
//	@Produce		json
//	@Param			name	path	string	true	"contract name"
//	@Success		200		{object}	gin.H
//	@Router			/{name}/fields/decode [post]
func (c *Controller) DecodeFields(ctx *gin.Context) {
	var req bocRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		paramErr(ctx, "body", err)
		return
	}
	s, err := req.slice()
	if err != nil {
		paramErr(ctx, "boc", err)
		return
	}
	ct, err := c.resolve(ctx, ctx.Param("name"))
	if err != nil {
		internalErr(ctx, err)
		return
	}
	out, err := ct.DecodeFields(s)
	if err != nil {
		internalErr(ctx, err)
		return
	}
	ctx.IndentedJSON(http.StatusOK, out)
}

// FunctionID godoc
//
//	@Summary		function signature ids
//	@Tags			codec
//	@Produce		json
//	@Param			name		path	string	true	"contract name"
//	@Param			function	path	string	true	"function name"
//	@Success		200			{object}	gin.H
//	@Router			/{name}/function/{function}/id [get]
func (c *Controller) FunctionID(ctx *gin.Context) {
	ct, err := c.resolve(ctx, ctx.Param("name"))
	if err != nil {
		internalErr(ctx, err)
		return
	}
	fn, ok := ct.Doc.Functions[ctx.Param("function")]
	if !ok {
		paramErr(ctx, "function", contract.ErrUnknownFunction)
		return
	}
	ctx.IndentedJSON(http.StatusOK, gin.H{"input_id": fn.InputID, "output_id": fn.OutputID})
}
