package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/account"
	"github.com/trezcool/shule/services/spreadsheet"
)

const (
	orderingParam  = "ordering"
	uploadFileForm = "file"
)

var errInvalidExcel = errors.New("the file is not a valid excel (.xlsx) file")

// dateRange binds the `date`, `from` & `to` query params shared by the list endpoints.
type dateRange struct {
	Date core.Date
	From core.Date
	To   core.Date
}

func (dr *dateRange) bind(b *echo.ValueBinder) *echo.ValueBinder {
	return b.BindUnmarshaler("date", &dr.Date).
		BindUnmarshaler("from", &dr.From).
		BindUnmarshaler("to", &dr.To)
}

// bindOrdering parses `?ordering=-field,other` keeping the allowed fields only.
func bindOrdering(ctx echo.Context, allowed ...string) []core.DBOrdering {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}
	return core.ParseOrdering(val, allowed...)
}

func bindTimeRange(b *echo.ValueBinder, from, to *time.Time) *echo.ValueBinder {
	return b.Time("created_from", from, time.RFC3339).Time("created_to", to, time.RFC3339)
}

// sendTable answers an xlsx attachment of table.
func sendTable(ctx echo.Context, table core.Table) error {
	buf, err := spreadsheet.Write(table.Header, table.Rows)
	if err != nil {
		return errors.Wrap(err, "writing spreadsheet")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", table.Name+".xlsx"))
	return ctx.Blob(http.StatusOK, spreadsheet.ContentType, buf.Bytes())
}

// bindUploadRows reads the data rows of the uploaded xlsx file.
func bindUploadRows(ctx echo.Context) ([]account.Row, error) {
	fldErr := func(err error) error {
		return core.NewValidationError(err, core.FieldError{Field: uploadFileForm, Error: err.Error()})
	}

	fh, err := ctx.FormFile(uploadFileForm)
	if err != nil {
		return nil, fldErr(errors.New("this field is required"))
	}
	file, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening uploaded file")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer file.Close()

	records, err := spreadsheet.ReadRecords(file)
	if err != nil {
		switch errors.Cause(err) {
		case spreadsheet.ErrNoSheet, spreadsheet.ErrNoHeader:
			return nil, fldErr(errors.Cause(err))
		}
		return nil, fldErr(errInvalidExcel)
	}

	rows := make([]account.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, account.Row{Number: rec.Row, Values: rec.Values})
	}
	return rows, nil
}
