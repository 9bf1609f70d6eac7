package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/hrdesk/internal/export"
)

// maxImportBytes caps an uploaded CSV body.
const maxImportBytes = 4 << 20

// exportCSV writes the tasks matching the search parameters as CSV.
func (s *Server) exportCSV(c *gin.Context) {
	q, f, err := filterFromQuery(c)
	if err != nil {
		badRequest(c, "invalid query", err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, s.engine.SearchTasks(q, f)); err != nil {
		handleError(c, err)
		return
	}
	name := fmt.Sprintf("hrdesk-%s.csv", s.engine.Now().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// importCSV creates one task per row of a CSV body. Rows get fresh IDs; the
// whole file is rejected when any row is invalid.
func (s *Server) importCSV(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	rows, err := export.ParseCSV(body)
	if err != nil {
		handleError(c, err)
		return
	}
	created, err := export.Import(c.Request.Context(), s.engine, rows)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.presentAll(created))
}
