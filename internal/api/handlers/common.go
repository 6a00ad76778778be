package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/form"
	"github.com/urbanisme-sn/portail/internal/schema"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// HealthCheck godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Models gives handlers access to the registered models and their services.
type Models struct {
	Registry *schema.Registry
	Services map[string]*crud.Service
	Forms    []form.Option
}

// service resolves the :model parameter, writing a 404 when it is unknown.
func (m *Models) service(c *gin.Context) (*crud.Service, bool) {
	name := c.Param("model")
	svc, ok := m.Services[name]
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown model " + strconv.Quote(name)})
		return nil, false
	}
	return svc, true
}

func (m *Models) form(model *schema.ModelConfig, extra ...form.Option) *form.Form {
	opts := append(append([]form.Option{}, m.Forms...), extra...)
	return form.New(model, opts...)
}

// respondError writes the status matching err.
func respondError(c *gin.Context, err error) {
	var verrs form.ValidationErrors
	var rej *crud.RejectionError
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Fields: verrs})
	case errors.As(err, &rej):
		resp := ErrorResponse{Error: rej.Message}
		if rej.Field != "" {
			resp.Fields = map[string][]string{rej.Field: {rej.Message}}
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
	case errors.Is(err, crud.ErrFeatureDisabled):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, crud.ErrUnknownAction):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, form.ErrBusy):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, crud.ErrOperationFailed):
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: what + " not found"})
}

// listOptions reads a listing request:
//
//	?page=2&limit=20&sort=title&order=asc&search=dakar&include=project
//	&filter[status]=open&filter[status]=closed&min[budget]=1000&max[budget]=5000&trashed=only
func listOptions(c *gin.Context) crud.ListOptions {
	q := c.Request.URL.Query()
	opts := crud.ListOptions{
		SortBy:      q.Get("sort"),
		SortOrder:   schema.SortOrder(strings.ToLower(q.Get("order"))),
		Search:      q.Get("search"),
		OnlyTrashed: q.Get("trashed") == "only",
	}
	opts.Page, _ = strconv.Atoi(q.Get("page"))
	opts.Limit, _ = strconv.Atoi(q.Get("limit"))
	if inc := q.Get("include"); inc != "" {
		opts.Includes = strings.Split(inc, ",")
	}

	filters := map[string]any{}
	ranges := map[string]*crud.Range{}
	rangeOf := func(name string) *crud.Range {
		r, ok := ranges[name]
		if !ok {
			r = &crud.Range{}
			ranges[name] = r
		}
		return r
	}
	for key, values := range q {
		name, kind, ok := bracketKey(key)
		if !ok || len(values) == 0 {
			continue
		}
		switch kind {
		case "filter":
			if len(values) == 1 {
				filters[name] = values[0]
			} else {
				filters[name] = values
			}
		case "min":
			rangeOf(name).Min = values[0]
		case "max":
			rangeOf(name).Max = values[0]
		}
	}
	for name, r := range ranges {
		filters[name] = *r
	}
	if len(filters) > 0 {
		opts.Filters = filters
	}
	return opts
}

// bracketKey splits "filter[status]" into ("status", "filter").
func bracketKey(key string) (name, kind string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	kind, name = key[:open], key[open+1:len(key)-1]
	switch kind {
	case "filter", "min", "max":
		return name, kind, name != ""
	}
	return "", "", false
}

// IDsRequest selects records for bulk operations and actions.
type IDsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// BulkUpdateRequest applies Data to every record of IDs.
type BulkUpdateRequest struct {
	IDs  []string      `json:"ids" binding:"required"`
	Data schema.Record `json:"data" binding:"required"`
}

// CountResponse reports how many records an operation touched.
type CountResponse struct {
	Count int64 `json:"count"`
}
